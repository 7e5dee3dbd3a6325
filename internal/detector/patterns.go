package detector

import "regexp"

// replyPrefixRe matches subjects of replies and forwards.
var replyPrefixRe = regexp.MustCompile(`(?i)^(?:(?:re|fwd?|forward)\s*:|\[fwd\]|\(fwd\))`)

// shippingSenderPatterns flag carrier and logistics sender addresses.
var shippingSenderPatterns = compileAll(
	`shipment-tracking@amazon\.com`,
	`ship-confirm@amazon\.com`,
	`shipping@amazon\.com`,
	`delivery@amazon\.com`,
	`tracking@amazon\.com`,
	`shipment@amazon\.com`,
	`logistics@amazon\.com`,
	`fulfillment@amazon\.com`,
	`shipping-`,
	`delivery-`,
	`tracking-`,
	`shipment-`,
	`tracking@ups\.com`,
	`delivery@fedex\.com`,
	`tracking@usps\.com`,
	`shipment@dhl\.com`,
)

// shippingTextPatterns flag shipping-status language in subject or body.
var shippingTextPatterns = compileAll(
	`your\s+.*\s+(has\s+)?shipped`,
	`shipped\s+today`,
	`out\s+for\s+delivery`,
	`delivered`,
	`delivery\s+update`,
	`package\s+delivered`,
	`package\s+update`,
	`shipment\s+notification`,
	`tracking\s+information`,
	`track\s+your\s+package`,
	`delivery\s+notification`,
	`shipment\s+delivered`,
	`order.*shipped`,
	`item.*shipped`,
	`package.*shipped`,
	`delivery\s+attempt`,
	`delivery\s+rescheduled`,
	`delivery\s+delayed`,
	`package\s+is\s+on\s+the\s+way`,
	`arriving\s+today`,
	`arriving\s+tomorrow`,
	`expected\s+delivery`,
	`estimated\s+delivery`,
	`ups\s+delivery`,
	`fedex\s+delivery`,
	`usps\s+delivery`,
	`amazon\s+delivery`,
	`dhl\s+delivery`,
	`amazon.*shipment`,
	`preparing\s+to\s+ship`,
	`now\s+shipped`,
	`has\s+been\s+shipped`,
	`will\s+arrive`,
)

// purchaseIndicatorPatterns are the signals that turn a shipping email back
// into a receipt: shipping status alone is not a receipt, but shipping plus
// purchase evidence is.
var purchaseIndicatorPatterns = compileAll(
	`order\s+confirmation`,
	`purchase\s+confirmation`,
	`payment\s+confirmation`,
	`receipt`,
	`invoice`,
	`charged`,
	`payment\s+received`,
	`total.*\$\d+`,
	`amount.*\$\d+`,
	`order\s+total`,
	`subtotal`,
	`tax.*\$\d+`,
	`order\s+placed`,
	`thank\s+you\s+for.*order`,
)

// promotionalKeywords are literal substrings checked against subject and body.
var promotionalKeywords = []string{
	"sale", "discount", "coupon", "deal", "deals", "offer", "promotion",
	"promo", "save", "savings", "off", "clearance", "limited time", "hurry",
	"newsletter", "weekly ad", "special offer", "flash sale", "free shipping",
	"member exclusive", "subscriber", "unsubscribe", "marketing", "browse",
	"shop now", "check out", "new arrivals", "trending", "bestseller",
	"featured", "recommended", "catalog", "circular", "black friday",
	"cyber monday", "holiday sale", "back to school", "rewards program",
	"loyalty", "points earned", "cashback earned", "gift card", "sweepstakes",
	"contest", "giveaway", "win", "personalized", "just for you",
	"based on your", "you might like",
	// gaming/deal-site vocabulary
	"weekly digest", "daily digest", "roundup", "this week", "new releases",
	"best deals", "top deals", "hot deals", "price drop", "discounted",
	"on sale", "reduced price", "lowest price", "price alert", "wishlist",
	"watch list", "compare prices", "deal alert",
	// newsletter vocabulary
	"digest", "update", "news", "updates", "latest", "recent", "weekly",
	"monthly", "daily", "edition", "issue", "curated", "handpicked",
	"selected", "picks",
	// marketing action words
	"discover", "explore", "find", "search", "view all", "see more",
	"learn more", "read more", "get started", "sign up", "join", "register",
	"download", "try",
	// urgency
	"expires", "ending", "last chance", "final", "closing",
	"while supplies last", "limited quantity", "almost gone",
}

var marketingPatterns = compileAll(
	`\d+%\s*off`,
	`save\s*\$\d+`,
	`free\s*shipping`,
	`limited\s*time`,
	`act\s*now`,
	`shop\s*now`,
	`don't\s*miss`,
	`hurry`,
	`ends\s*(soon|today)`,
	`check\s*this\s*week`,
	`new\s*discounts`,
	`best\s*deals`,
	`weekly\s*digest`,
	`\+\d+\s*this\s*week`,
	`deals?\s*weekly`,
	`price\s*drop`,
	`now\s*\$\d+`,
)

// trackingPatterns flag marketing/tracking plumbing in the body.
var trackingPatterns = compileAll(
	`awstrack\.me`,
	`click\.`,
	`track\.`,
	`utm_`,
	`newsletter`,
	`unsubscribe`,
)

// dealSitePatterns flag deal aggregator senders and subjects.
var dealSitePatterns = compileAll(
	`deals?\s*net`,
	`deals?\s*com`,
	`bargain`,
	`slickdeals`,
	`reddit.*deals`,
	`steam.*sale`,
	`game.*deals`,
)

// governmentSenderFragments exempt a sender from the promotional label.
var governmentSenderFragments = []string{"irs", "dmv", "gov"}

// strongReceiptKeywords are literal phrases that strongly suggest a receipt.
var strongReceiptKeywords = []string{
	"receipt", "invoice", "order confirmation", "payment confirmation",
	"purchase confirmation", "order complete", "payment received",
	"order summary", "order placed", "billing statement", "account statement",
	"thank you for your order", "order total", "amount charged",
	"subscribe & save", "subscription order", "ordered", "ordered:",
	"renewal", "license plate renewal",
}

// strongReceiptPatterns catch interleaved phrasing like "Order #123 Confirmation".
var strongReceiptPatterns = compileAll(
	`order.*confirmation`,
	`payment.*confirmation`,
	`purchase.*confirmation`,
)

// supportingEvidencePatterns are the corroboration a strong keyword needs:
// an order/invoice/transaction number, a dollar amount, or arrival phrasing.
var supportingEvidencePatterns = compileAll(
	`order\s*#?\s*[a-z0-9\-]{6,}`,
	`invoice\s*#?\s*[a-z0-9\-]{6,}`,
	`transaction\s*#?\s*[a-z0-9\-]{6,}`,
	`tracking\s*#?\s*[a-z0-9\-]{8,}`,
	`\$[0-9,]+\.[0-9]{2}`,
	`total:?\s*\$[0-9,]+\.[0-9]{2}`,
	`amount:?\s*\$[0-9,]+\.[0-9]{2}`,
	`paid:?\s*\$[0-9,]+\.[0-9]{2}`,
	`view your order`,
	`arriving (tomorrow|today|monday|tuesday|wednesday|thursday|friday|saturday|sunday)`,
)

// transactionalIndicators drive the weighted transactional score.
var transactionalIndicators = []struct {
	re     *regexp.Regexp
	points int
}{
	{regexp.MustCompile(`(?i)order\s*#?\s*[a-z0-9\-]{6,}`), 2},
	{regexp.MustCompile(`(?i)\$[0-9,]+\.[0-9]{2}`), 2},
	{regexp.MustCompile(`(?i)thank\s*you\s*for\s*(your\s*)?(order|purchase)`), 2},
	{regexp.MustCompile(`(?i)invoice\s*#?\s*[a-z0-9\-]{6,}`), 2},
	{regexp.MustCompile(`(?i)transaction`), 1},
	{regexp.MustCompile(`(?i)payment`), 1},
	{regexp.MustCompile(`(?i)billing`), 1},
	{regexp.MustCompile(`(?i)statement`), 1},
	{regexp.MustCompile(`(?i)account\s*balance`), 1},
	{regexp.MustCompile(`(?i)due\s*date`), 1},
	{regexp.MustCompile(`(?i)autopay`), 1},
	{regexp.MustCompile(`(?i)direct\s*debit`), 1},
	{regexp.MustCompile(`(?i)^ordered:`), 2},
}

// knownReceiptSenders is a fixed allow-list of transactional domains.
var knownReceiptSenders = []string{
	"amazon.com", "amazon.co", "amazonses.com",
	"auto-confirm@amazon.com", "order-update@amazon.com",
	"digital-no-reply@amazon.com", "payments-messages@amazon.com",
	"paypal.com", "paypal-communications.com",
	"stripe.com", "square.com",
	"apple.com", "itunes.com",
	"google.com", "googlepayments.com",
	"microsoft.com", "xbox.com",
	"uber.com", "lyft.com",
	"doordash.com", "grubhub.com", "instacart.com", "shipt.com",
}

var confirmationPatterns = compileAll(
	`confirmation`,
	`receipt`,
	`order\s*#`,
	`invoice`,
	`payment`,
	`charged`,
	`bill`,
	`statement`,
	`\$[0-9,]+\.[0-9]{2}`,
)

// senderCategories maps sender fragments to receipt categories, checked in
// order with first match winning.
var senderCategories = []struct {
	fragments []string
	category  string
}{
	{[]string{"amazon", "aws"}, "amazon"},
	{[]string{"uber", "lyft"}, "transportation"},
	{[]string{"doordash", "grubhub", "ubereats"}, "food-delivery"},
	{[]string{"starbucks", "mcdonalds", "subway"}, "restaurants"},
	{[]string{"walmart", "target", "costco"}, "retail"},
	{[]string{"netflix", "spotify", "adobe"}, "subscriptions"},
	{[]string{"paypal", "venmo", "square"}, "payments"},
	{[]string{"att", "verizon", "comcast", "xfinity", "spectrum"}, "utilities"},
	{[]string{"cvs", "walgreens", "pharmacy"}, "healthcare"},
	{[]string{"irs", "dmv", "gov"}, "government"},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(`(?i)`+p))
	}
	return res
}
