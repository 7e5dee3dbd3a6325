package resolver

import (
	"strings"

	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/model"
)

// TraceStep records one stage of the resolution for diagnostic UIs.
type TraceStep struct {
	Step   string `json:"step"`
	Result bool   `json:"result"`
	Detail string `json:"detail,omitempty"`
}

// Trace is the full diagnostic trail for one email. Production code uses
// only Decision; Trace exists for the debug endpoint and history analysis.
type Trace struct {
	Subject  string      `json:"subject"`
	Sender   string      `json:"sender"`
	Steps    []TraceStep `json:"steps"`
	Decision Decision    `json:"decision"`
}

// Explain resolves an email and records which steps were consulted and what
// each contributed.
func (r *Resolver) Explain(email model.EmailMessage) Trace {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	sender := strings.ToLower(email.From)

	trace := Trace{Subject: email.Subject, Sender: email.From}
	decision := r.Resolve(email)
	trace.Decision = decision

	switch decision.Step {
	case StepManualRule:
		trace.Steps = append(trace.Steps, TraceStep{Step: "manual_rule", Result: true, Detail: decision.Reason})
		return trace
	case StepAlwaysForward, StepBlocked:
		trace.Steps = append(trace.Steps, TraceStep{Step: "manual_rule", Result: false})
		trace.Steps = append(trace.Steps, TraceStep{Step: string(decision.Step), Result: true, Detail: decision.Reason})
		return trace
	}

	// Heuristic path: replay each classifier stage for the trail.
	trace.Steps = append(trace.Steps, TraceStep{Step: "manual_rule", Result: false})
	trace.Steps = append(trace.Steps, TraceStep{Step: "preferences", Result: false})
	trace.Steps = append(trace.Steps,
		TraceStep{Step: "reply_or_forward", Result: r.detector.IsReplyOrForward(subject, sender)},
		TraceStep{Step: "strong_receipt_indicators", Result: detector.HasStrongReceiptIndicators(subject, body)},
		TraceStep{Step: "promotional", Result: detector.IsPromotionalEmail(subject, body, sender)},
		TraceStep{Step: "shipping_notification", Result: detector.IsShippingNotification(subject, body, sender)},
		TraceStep{Step: "transactional_score", Result: detector.TransactionalScore(subject, body, sender) >= 3},
		TraceStep{Step: "known_sender_confirmation", Result: detector.IsKnownReceiptSender(sender) && detector.HasTransactionConfirmation(subject, body)},
	)
	return trace
}
