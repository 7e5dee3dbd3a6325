// Package detector decides, from subject, body, and sender alone, whether an
// email looks like a purchase receipt. Everything here is deterministic
// keyword and regex matching; database-backed rules and preferences are
// layered on top by the resolver package.
package detector

import (
	"regexp"
	"strings"

	"receipt-sentinel/internal/model"
)

// Detector scores emails with the built-in heuristics. selfAddresses holds
// the monitored accounts plus the forwarding target; mail from any of them
// is treated as a reply/forward and never as a receipt.
type Detector struct {
	selfAddresses []string
}

// New creates a Detector. Addresses are matched as case-insensitive
// substrings of the sender header.
func New(selfAddresses []string) *Detector {
	lowered := make([]string, 0, len(selfAddresses))
	for _, a := range selfAddresses {
		if a = strings.TrimSpace(strings.ToLower(a)); a != "" {
			lowered = append(lowered, a)
		}
	}
	return &Detector{selfAddresses: lowered}
}

// IsReceipt runs the full heuristic decision order. It is a pure function of
// (subject, body, sender): identical inputs always produce identical results.
//
// Order: replies/forwards are rejected first; strong receipt indicators
// accept and deliberately override the promotional filter; promotional and
// shipping-only mail is rejected; then the weighted transactional score and
// the known-sender+confirmation pair get their chance.
func (d *Detector) IsReceipt(email model.EmailMessage) bool {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	sender := strings.ToLower(email.From)

	if d.IsReplyOrForward(subject, sender) {
		return false
	}
	if HasStrongReceiptIndicators(subject, body) {
		return true
	}
	if IsPromotionalEmail(subject, body, sender) {
		return false
	}
	if IsShippingNotification(subject, body, sender) {
		return false
	}
	if TransactionalScore(subject, body, sender) >= 3 {
		return true
	}
	if IsKnownReceiptSender(sender) && HasTransactionConfirmation(subject, body) {
		return true
	}
	return false
}

// IsReplyOrForward reports whether the subject carries a reply/forward
// prefix or the sender is one of our own addresses.
func (d *Detector) IsReplyOrForward(subject, sender string) bool {
	if replyPrefixRe.MatchString(subject) {
		return true
	}
	sender = strings.ToLower(sender)
	for _, addr := range d.selfAddresses {
		if strings.Contains(sender, addr) {
			return true
		}
	}
	return false
}

// IsShippingNotification reports whether the email is a shipping status
// update with no purchase evidence. A shipment email that also carries
// purchase indicators (order total, invoice, charged amount) is not
// excluded and stays eligible as a receipt.
func IsShippingNotification(subject, body, sender string) bool {
	if anyMatch(shippingSenderPatterns, sender) {
		return true
	}

	text := subject + " " + body
	if !anyMatch(shippingTextPatterns, text) {
		return false
	}
	return !anyMatch(purchaseIndicatorPatterns, text)
}

// IsPromotionalEmail reports whether the email reads as marketing. Two
// exemptions: "subscribe & save"/"subscription order" text (those are
// receipts despite the vocabulary), and government senders (irs/dmv/gov).
func IsPromotionalEmail(subject, body, sender string) bool {
	text := subject + " " + body
	if strings.Contains(text, "subscribe & save") || strings.Contains(text, "subscription order") {
		return false
	}
	for _, gov := range governmentSenderFragments {
		if strings.Contains(sender, gov) {
			return false
		}
	}

	for _, kw := range promotionalKeywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	if anyMatch(marketingPatterns, subject) || anyMatch(marketingPatterns, body) {
		return true
	}
	if anyMatch(trackingPatterns, body) {
		return true
	}
	if anyMatch(dealSitePatterns, sender) || anyMatch(dealSitePatterns, subject) || anyMatch(dealSitePatterns, body) {
		return true
	}
	return false
}

// HasStrongReceiptIndicators reports whether the email contains a strong
// receipt phrase plus supporting evidence (an order/invoice/transaction
// number, a dollar amount, or arrival phrasing). A keyword without evidence
// is not enough.
func HasStrongReceiptIndicators(subject, body string) bool {
	hasKeyword := false
	for _, kw := range strongReceiptKeywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			hasKeyword = true
			break
		}
	}

	text := subject + " " + body
	if !hasKeyword && !anyMatch(strongReceiptPatterns, text) {
		return false
	}
	return anyMatch(supportingEvidencePatterns, text)
}

// TransactionalScore sums weighted transactional signals over subject, body,
// and sender. Order/invoice numbers, dollar amounts, and thank-you-for-your-
// order phrasing weigh 2; generic billing vocabulary weighs 1. No cap.
func TransactionalScore(subject, body, sender string) int {
	text := subject + " " + body + " " + sender
	score := 0
	for _, ind := range transactionalIndicators {
		if ind.re.MatchString(text) {
			score += ind.points
		}
	}
	return score
}

// IsKnownReceiptSender reports substring membership in the transactional
// sender allow-list.
func IsKnownReceiptSender(sender string) bool {
	sender = strings.ToLower(sender)
	for _, s := range knownReceiptSenders {
		if strings.Contains(sender, s) {
			return true
		}
	}
	return false
}

// HasTransactionConfirmation reports whether any confirmation signal is
// present in subject or body.
func HasTransactionConfirmation(subject, body string) bool {
	return anyMatch(confirmationPatterns, subject) || anyMatch(confirmationPatterns, body)
}

// Categorize maps a receipt to a spending category by sender fragment,
// first match winning, with a couple of subject-based fallbacks for
// healthcare and government.
func Categorize(email model.EmailMessage) string {
	sender := strings.ToLower(email.From)
	subject := strings.ToLower(email.Subject)

	for _, entry := range senderCategories {
		for _, frag := range entry.fragments {
			if strings.Contains(sender, frag) {
				return entry.category
			}
		}
		switch entry.category {
		case "healthcare":
			if strings.Contains(subject, "prescription") || strings.Contains(subject, "copay") {
				return entry.category
			}
		case "government":
			if strings.Contains(subject, "tax") || strings.Contains(subject, "license") {
				return entry.category
			}
		}
	}
	return "other"
}

// Confidence scores how certain the heuristics are that the email is a
// receipt, 0-100. Promotional mail scores zero outright.
func Confidence(email model.EmailMessage) int {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	sender := strings.ToLower(email.From)

	if IsPromotionalEmail(subject, body, sender) {
		return 0
	}

	confidence := 0
	if HasStrongReceiptIndicators(subject, body) {
		confidence += 40
	}
	confidence += TransactionalScore(subject, body, sender) * 10
	if IsKnownReceiptSender(sender) {
		confidence += 20
	}
	if HasTransactionConfirmation(subject, body) {
		confidence += 10
	}

	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
