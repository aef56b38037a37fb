package postgres

// Dialect selects SQL differences between the supported databases
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// timestampType is the column type used for instants
func (d Dialect) timestampType() string {
	if d == DialectSQLite {
		return "TIMESTAMP"
	}
	return "TIMESTAMPTZ"
}

// floatType is the column type used for derived ratios and amounts
func (d Dialect) floatType() string {
	if d == DialectSQLite {
		return "REAL"
	}
	return "DOUBLE PRECISION"
}
