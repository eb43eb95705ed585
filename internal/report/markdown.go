// Package report renders harvest session reports as markdown documents
// suitable for sharing or archiving alongside run logs.
package report

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/rotisserie/eris"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// WriteSession renders a finished harvest session as a markdown report.
func WriteSession(w io.Writer, sess *model.HarvestSession) error {
	md := markdown.NewMarkdown(w)

	md.H1("Harvest Session Report")
	md.PlainText("")

	writeSummary(md, sess)
	writeErrors(md, sess)

	return eris.Wrap(md.Build(), "report: build markdown")
}

// WriteSessionFile renders the session report to path, creating or
// truncating the file.
func WriteSessionFile(path string, sess *model.HarvestSession) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}

	if err := WriteSession(f, sess); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

func writeSummary(md *markdown.Markdown, sess *model.HarvestSession) {
	md.H2("Summary")
	md.PlainText("")

	completed := "-"
	if sess.CompletedAt != nil {
		completed = sess.CompletedAt.UTC().Format("2006-01-02 15:04:05 MST")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + sess.ID + "`"},
			{"Status", statusText(sess.Status)},
			{"Started", sess.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Completed", completed},
			{"Duration", sess.Duration().Round(time.Second).String()},
			{"Found", strconv.Itoa(sess.TotalFound)},
			{"Harvested", strconv.Itoa(sess.Successful)},
			{"Failed", strconv.Itoa(sess.Failed)},
		},
	})
	md.PlainText("")

	switch {
	case sess.Status == model.SessionStatusFailed:
		md.Warningf("Run aborted before completion. %d of %d items were persisted.",
			sess.Successful, sess.TotalFound)
	case sess.Failed > 0:
		md.Importantf("%d item(s) could not be harvested. Details below.", sess.Failed)
	default:
		md.Tip("All discovered items were harvested successfully.")
	}
	md.PlainText("")
}

func writeErrors(md *markdown.Markdown, sess *model.HarvestSession) {
	if len(sess.Errors) == 0 {
		return
	}

	md.H2("Failed Items")
	md.PlainText("")

	rows := make([][]string, len(sess.Errors))
	for i, e := range sess.Errors {
		rows[i] = []string{
			"`" + e.Opid + "`",
			truncate(e.Reason, 80),
			e.OccurredAt.UTC().Format("15:04:05"),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Opid", "Reason", "Time"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(status model.SessionStatus) string {
	switch status {
	case model.SessionStatusCompleted:
		return "✅ Completed"
	case model.SessionStatusFailed:
		return "❌ Failed"
	default:
		return "⏳ " + string(status)
	}
}

// truncate shortens s to maxLen characters with an ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
