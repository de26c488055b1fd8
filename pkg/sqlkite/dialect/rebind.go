package dialect

import (
	"strconv"
	"strings"
)

// Rebind rewrites ? markers into the driver's placeholder syntax. Products that take
// ? markers get sql back unchanged. Markers inside quoted strings, quoted identifiers
// and comments are left alone.
func (d *Dialect) Rebind(sql string) string {
	if !d.profile.positional {
		return sql
	}

	return Rebind(sql)
}

// Rebind rewrites ? markers into $1, $2, ... in order of appearance.
func Rebind(sql string) string {
	if strings.IndexByte(sql, '?') < 0 {
		return sql
	}

	var (
		counter = 1
		out     strings.Builder
		quote   byte
	)

	out.Grow(len(sql) + 8)

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		switch {
		case quote == '-':
			if ch == '\n' {
				quote = 0
			}
		case quote == '*':
			if ch == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				out.WriteByte(ch)
				i++
				ch = sql[i]
				quote = 0
			}
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			quote = '-'
		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			quote = '*'
			out.WriteByte(ch)
			i++
			ch = sql[i]
		case ch == '?':
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(counter))
			counter++

			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}
