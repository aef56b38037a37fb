// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, report)
//	httputil.WriteAccepted(w, session)
//	httputil.WriteBadRequest(w, "invalid months")
//	httputil.WriteAnalyticsError(w, err)
//
// WriteAnalyticsError maps analytics.ErrInvalidArgument to 400,
// analytics.ErrNotFound and analytics.ErrCreatorProfileMissing to 404 and
// everything else to a generic 500.
//
// # Request Parsing
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	months, ok := httputil.ParseQueryIntOrError(w, r, "months", 0)
//	ok := httputil.ParseJSONOrError(w, r, &req)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.CORSMiddleware(origins),
//	)(router)
//
// RequestIDMiddleware must run first so later middleware can log through
// observability.FromContext with the request id attached.
package httputil
