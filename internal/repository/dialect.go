package repository

import (
	"strconv"

	"github.com/Rawcherry/To-Do-App/internal/config"
)

// dialect hides the placeholder and RETURNING differences between the
// supported drivers.
type dialect struct {
	name      string
	returning bool
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	postgresDialect = dialect{name: config.DriverPostgres, returning: true, numbered: true}
	mysqlDialect    = dialect{name: config.DriverMySQL}
)

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case config.DriverPostgres:
		return postgresDialect, true
	case config.DriverMySQL:
		return mysqlDialect, true
	}
	return dialect{}, false
}

// bind returns the placeholder for the n-th (1-based) argument.
func (d dialect) bind(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
