package metrics

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/go-sql-driver/mysql"
)

// mysqlCodes names the server error numbers a load run commonly hits.
// 8xxx and 9xxx are TiDB-specific.
var mysqlCodes = map[uint16]string{
	1040: "too many connections",
	1045: "access denied",
	1062: "duplicate entry",
	1146: "no such table",
	1205: "lock wait timeout",
	1213: "deadlock",
	8022: "txn retry failed",
	8028: "schema changed",
	9005: "region unavailable",
	9007: "write conflict",
}

// ErrorCategory returns the breakdown bucket for a failed iteration.
// Server errors bucket by MySQL error number; context expiry, broken
// connections and network failures get fixed names; anything else is
// named after the type of its innermost wrapped error.
func ErrorCategory(err error) string {
	if err == nil {
		return ""
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if name, ok := mysqlCodes[myErr.Number]; ok {
			return fmt.Sprintf("MySQL %d (%s)", myErr.Number, name)
		}
		return fmt.Sprintf("MySQL %d", myErr.Number)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return "Bad connection"
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return "Connection closed"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network timeout"
		}
		return "Network error"
	}

	return FriendlyErrorName(fmt.Sprintf("%T", innermost(err)))
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// typeAliases covers the stdlib error types whose names say nothing useful.
var typeAliases = map[string]string{
	"errors.errorString": "Error",
	"fmt.wrapError":      "Error",
	"fmt.wrapErrors":     "Error",
	"mysql.MySQLError":   "MySQL server error",
	"net.OpError":        "Network error",
	"net.DNSError":       "DNS error",
}

// FriendlyErrorName turns a %T type name such as "*driver.badConnError"
// into a label like "Bad Conn Error (driver)".
func FriendlyErrorName(typeName string) string {
	name := strings.TrimLeft(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if alias, ok := typeAliases[name]; ok {
		return alias
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	pkg, typ, ok := strings.Cut(name, ".")
	if !ok {
		pkg, typ = "", name
	}
	label := splitWords(typ)
	if pkg == "" || pkg == "main" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, pkg)
}

// splitWords breaks a camel-case identifier into capitalised words,
// keeping acronyms such as "HTTP" together.
func splitWords(ident string) string {
	runes := []rune(ident)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && wordStart(runes, i) {
			b.WriteByte(' ')
		}
		if i == 0 || wordStart(runes, i) {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func wordStart(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	switch {
	case unicode.IsDigit(r):
		return !unicode.IsDigit(prev)
	case !unicode.IsUpper(r):
		return false
	case unicode.IsLower(prev), unicode.IsDigit(prev):
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
