package dbengine

import (
	"regexp"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

// ServiceResolver is the subset of ontology.Registry the built-in SQL
// functions need; kept as an interface so dbengine doesn't have to import
// the concrete Registry type for anything but this.
type ServiceResolver interface {
	ServiceByID(id int) (*ontology.ServiceType, bool)
	ServiceByName(name string) (*ontology.ServiceType, bool)
}

// registerBuiltinFunctions binds the §4.2 "Built-in user functions" onto a
// raw mattn/go-sqlite3 connection. It is a no-op on any other driver
// connection type (e.g. modernc.org/sqlite, which has no RegisterFunc
// hook) — those handles simply don't get user functions, per the tuning
// profile's AddFunctions flag.
func registerBuiltinFunctions(driverConn any, registry ServiceResolver) error {
	conn, ok := driverConn.(*sqlite3.SQLiteConn)
	if !ok {
		return nil
	}

	if err := conn.RegisterFunc("FormatDate", formatDate, true); err != nil {
		return err
	}
	if err := conn.RegisterFunc("REGEXP", regexpMatch, true); err != nil {
		return err
	}
	if err := conn.RegisterFunc("uncompress", uncompressBlob, true); err != nil {
		return err
	}
	if err := conn.RegisterFunc("GetServiceName", func(id int64) string {
		if registry == nil {
			return ""
		}
		if st, ok := registry.ServiceByID(int(id)); ok {
			return st.Name
		}
		return ""
	}, true); err != nil {
		return err
	}
	return conn.RegisterFunc("GetServiceTypeID", func(name string) int64 {
		if registry == nil {
			return -1
		}
		if st, ok := registry.ServiceByName(name); ok {
			return int64(st.ID)
		}
		return -1
	}, true)
}

func formatDate(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}

func regexpMatch(pattern, text string) (bool, error) {
	return regexp.MatchString(pattern, text)
}

func uncompressBlob(blob []byte) (string, error) {
	return textpipeline.Decode(blob)
}
