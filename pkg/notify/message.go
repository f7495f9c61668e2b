// Package notify tells people that a transfer run finished.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// Priority of a message. Backends map it to their own scale.
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// maxListedFailures caps the failures spelled out in a message body.
const maxListedFailures = 10

// Message is the summary of one run.
type Message struct {
	RunID     string
	Timestamp time.Time
	Priority  Priority

	// Tags classify the message, e.g. the resource kind and "failed".
	Tags []string

	Subject string
	Body    string
}

// FromReport summarizes a finished run. runErr is the error Transfer
// returned, if any.
func FromReport(report *transfer.Report, runErr error) *Message {
	run := report.Run
	counts := report.Counts()
	failed := report.Failed()

	msg := &Message{
		RunID:     run.ID.String(),
		Timestamp: time.Now(),
		Priority:  PriorityNormal,
		Tags:      []string{string(run.Kind)},
	}

	switch {
	case runErr != nil:
		msg.Priority = PriorityHigh
		msg.Tags = append(msg.Tags, "aborted")
		msg.Subject = fmt.Sprintf("%s transfer from %s to %s aborted", run.Kind, run.Source, run.Destination)
	case len(failed) > 0:
		msg.Priority = PriorityHigh
		msg.Tags = append(msg.Tags, "failed")
		msg.Subject = fmt.Sprintf("%s transfer from %s to %s: %d failed", run.Kind, run.Source, run.Destination, len(failed))
	default:
		msg.Priority = PriorityLow
		msg.Tags = append(msg.Tags, "succeeded")
		msg.Subject = fmt.Sprintf("%s transfer from %s to %s succeeded", run.Kind, run.Source, run.Destination)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s requested %d item(s).\n\n", run.ID, run.Items)
	fmt.Fprintf(&b, "- migrated: %d\n", counts[transfer.StatusMigrated])
	fmt.Fprintf(&b, "- already existed: %d\n", counts[transfer.StatusExists])
	fmt.Fprintf(&b, "- skipped: %d\n", counts[transfer.StatusSkipped])
	fmt.Fprintf(&b, "- failed: %d\n", counts[transfer.StatusFailed])

	if runErr != nil {
		fmt.Fprintf(&b, "\nAborted: %v\n", runErr)
	}

	if len(failed) > 0 {
		b.WriteString("\nFailures:\n")
		for i, o := range failed {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "- and %d more\n", len(failed)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "- %s", o.Unit)
			if o.Message != "" {
				fmt.Fprintf(&b, ": %s", o.Message)
			}
			b.WriteString("\n")
		}
	}

	msg.Body = strings.TrimRight(b.String(), "\n")
	return msg
}
