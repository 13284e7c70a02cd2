package storage

import "fmt"

// Open returns the provider for driver. path is the JSON file or SQLite
// database location and is ignored by the memory driver.
func Open(driver, path string) (Provider, error) {
	switch driver {
	case DriverJSON, "":
		return NewJSONFile(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
