package analytics

// tierCeiling is the upper bound a creator must reach on both axes to leave a tier
type tierCeiling struct {
	tier        Tier
	subscribers int64
	revenue     float64
}

var tierCeilings = []tierCeiling{
	{tier: TierNew, subscribers: 10, revenue: 100},
	{tier: TierEmerging, subscribers: 100, revenue: 1000},
	{tier: TierEstablished, subscribers: 1000, revenue: 10000},
}

// ClassifyTier maps subscriber count and monthly recurring revenue to a tier.
// Falling short of either ceiling keeps the creator in that tier.
func ClassifyTier(subscriberCount int64, monthlyRecurringRevenue float64) Tier {
	for _, ceiling := range tierCeilings {
		if subscriberCount < ceiling.subscribers || monthlyRecurringRevenue < ceiling.revenue {
			return ceiling.tier
		}
	}
	return TierTopPerformer
}
