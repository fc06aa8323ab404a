package commands

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"dailyquiz/internal/models"
	contextutils "dailyquiz/internal/utils"

	"golang.org/x/term"
)

// MaskDatabaseURL hides the credentials of a database URL for display
func MaskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		// Fall back to the simple split for DSNs url.Parse rejects
		if i := strings.LastIndex(raw, "@"); i >= 0 {
			return "postgres://***:***@" + raw[i+1:]
		}
		return raw
	}
	u.User = nil
	return u.Scheme + "://***:***@" + strings.TrimPrefix(u.String(), u.Scheme+"://")
}

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}

// confirm asks a yes/no question. Without a terminal on stdin it refuses, so scripts must pass --yes.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, contextutils.ErrorWithContextf("refusing to prompt without a terminal; pass --yes to confirm")
	}

	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, contextutils.WrapError(err, "failed to read confirmation")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// printQuestions writes one row per question
func printQuestions(out io.Writer, questions []*models.Question, withAnswers bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if withAnswers {
		fmt.Fprintln(tw, "#\tID\tTOPIC\tDIFFICULTY\tACTIVE\tANSWER\tSTEM")
	} else {
		fmt.Fprintln(tw, "#\tID\tTOPIC\tDIFFICULTY\tSTEM")
	}
	for i, q := range questions {
		if withAnswers {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\t%s\n", i+1, q.ID, q.Topic, q.Difficulty, q.Active, q.CorrectIndex, truncate(q.Stem, 60))
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, q.ID, q.Topic, q.Difficulty, truncate(q.Stem, 60))
		}
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
