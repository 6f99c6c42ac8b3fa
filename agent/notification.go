package agent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/mail"
	"github.com/hupe1980/opsmesh/model"
)

// ContextHeader introduces upstream agent output inside an action prompt.
const ContextHeader = "[Context from other agents:]"

// conversationFooter ends the conversation context block prepended to
// prompts.
const conversationFooter = "[End of context]"

// LowStockThreshold marks inventory items worth flagging in drafts.
const LowStockThreshold = 25

// MissingRecipientReply is returned when no e-mail address can be found.
const MissingRecipientReply = "I could not find a recipient e-mail address in the request. Include the address to draft the e-mail."

// DraftAgentOptions configures a DraftAgent.
type DraftAgentOptions struct {
	Description string
	CompanyName string
	// Signature closes every body. Defaults to "Best regards\n<CompanyName>".
	Signature string
	// Model writes the body when no upstream context is available. Without
	// a model a short generic body is used.
	Model  model.Model
	Now    func() time.Time
	Logger logging.Logger
}

// DraftAgent composes e-mail drafts. It never sends anything: the draft ends
// with an approval question and sending happens only after the user
// approves it.
type DraftAgent struct {
	BaseAgent
	opts DraftAgentOptions
}

// NewDraftAgent creates the notification specialist.
func NewDraftAgent(name string, optFns ...func(o *DraftAgentOptions)) *DraftAgent {
	opts := DraftAgentOptions{
		Description: "Drafts e-mails and sends them after human approval.",
		CompanyName: "Company",
		Now:         time.Now,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Signature == "" {
		opts.Signature = "Best regards\n" + opts.CompanyName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &DraftAgent{BaseAgent: NewBaseAgent(name, opts.Description), opts: opts}
}

// Invoke implements core.Agent.
func (d *DraftAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	request, contextData := splitContext(prompt)
	targeted := request
	if i := strings.LastIndex(request, conversationFooter); i >= 0 {
		targeted = strings.TrimSpace(request[i+len(conversationFooter):])
	}

	recipient := lastEmail(targeted)
	if recipient == "" {
		recipient = lastEmail(request)
	}
	if recipient == "" {
		return MissingRecipientReply, nil
	}

	purpose := RefinePurpose(extractPurpose(targeted))
	now := d.opts.Now()

	var msg mail.Message
	if strings.TrimSpace(contextData) == "" && d.opts.Model != nil {
		body, err := d.writeBody(ctx, targeted)
		if err != nil {
			return "", err
		}
		msg = mail.Message{To: recipient, Subject: subjectFor(purpose, nil), Body: body}
	} else {
		msg = ComposeFromContext(recipient, purpose, contextData, now, d.opts.Signature)
	}

	d.opts.Logger.Info("email draft composed", "agent", d.Name(), "to", msg.To, "subject", msg.Subject)
	return mail.FormatDraft(msg, now), nil
}

func (d *DraftAgent) writeBody(ctx context.Context, request string) (string, error) {
	instructions := "You are the Notification Specialist. Write only the body of a short, professional e-mail " +
		"for the request below. Start with a greeting, do not include a subject line or recipient, " +
		"and end with this signature:\n" + d.opts.Signature
	resp, err := d.opts.Model.Generate(ctx, model.UserRequest(instructions, request))
	if err != nil {
		return "", fmt.Errorf("compose e-mail body: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// splitContext separates the request from the upstream agent context block.
func splitContext(prompt string) (request, contextData string) {
	i := strings.Index(prompt, ContextHeader)
	if i < 0 {
		return strings.TrimSpace(prompt), ""
	}
	return strings.TrimSpace(prompt[:i]), strings.TrimSpace(prompt[i+len(ContextHeader):])
}

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

func lastEmail(text string) string {
	all := emailRe.FindAllString(text, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

var purposeRe = regexp.MustCompile(`(?i)\b(?:about|regarding|summari[sz]ing|containing|with|on)\s+(.+)$`)

// extractPurpose finds what the e-mail is about in a request such as
// "Draft an email to ops@acme.com about low valve stock".
func extractPurpose(request string) string {
	lines := strings.Split(strings.TrimSpace(request), "\n")
	last := emailRe.ReplaceAllString(lines[len(lines)-1], "")
	m := purposeRe.FindStringSubmatch(last)
	if m == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(m[1]), ".!?")
}

var (
	verbPrefixes = []string{
		"summarize", "provide", "draft", "compose", "check", "get", "give", "share",
		"list", "show", "generate", "create", "prepare",
	}
	verbPrefixRes   = compileVerbPrefixes(verbPrefixes)
	trailingNounRe  = regexp.MustCompile(`\b(data|information|details)\s*$`)
	leadingFillerRe = regexp.MustCompile(`^(?:the|a|an|of)\s+`)
	spacesRe        = regexp.MustCompile(`\s+`)
	smallWords      = map[string]bool{"of": true, "and": true, "for": true, "the": true, "to": true}
)

func compileVerbPrefixes(verbs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(verbs))
	for i, v := range verbs {
		out[i] = regexp.MustCompile(`^` + v + `\b[\s:,-]*`)
	}
	return out
}

// RefinePurpose turns a free-form purpose ("summarize the pump inventory
// data") into a subject fragment ("Pump Inventory").
func RefinePurpose(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return ""
	}
	cleaned = strings.TrimSpace(trailingNounRe.ReplaceAllString(cleaned, ""))
	for i := 0; i < 3; i++ {
		before := cleaned
		cleaned = leadingFillerRe.ReplaceAllString(cleaned, "")
		for _, re := range verbPrefixRes {
			cleaned = re.ReplaceAllString(cleaned, "")
		}
		if cleaned == before {
			break
		}
	}
	cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))

	words := strings.Fields(cleaned)
	for i, w := range words {
		if smallWords[w] && i > 0 {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	refined := strings.Join(words, " ")
	if refined == "" {
		return strings.TrimSpace(raw)
	}
	return refined
}

// InventoryItem is one product recovered from upstream agent output.
type InventoryItem struct {
	Name     string
	SKU      string
	Quantity int
	Price    *float64
}

// Value returns quantity times price when both are known.
func (i InventoryItem) Value() (float64, bool) {
	if i.Price == nil || i.Quantity == 0 {
		return 0, false
	}
	return float64(i.Quantity) * *i.Price, true
}

var (
	headerOnlyRe   = regexp.MustCompile(`^\[.*?\]:?\s*$`)
	headerPrefixRe = regexp.MustCompile(`^\[.*?\]:\s*`)
	bulletRe       = regexp.MustCompile(`^(?:[*\-•]+|\d+[.)])\s*`)
	skipLineRes    = []*regexp.Regexp{
		regexp.MustCompile(`^for context:`),
		regexp.MustCompile(`^i have drafted`),
		regexp.MustCompile(`approve.*email`),
	}
	nameSKURe          = regexp.MustCompile(`(?i)\*?\*?\s*(.+?)\s*\(SKU:\s*([A-Z\-0-9]+)\)`)
	stockRe            = regexp.MustCompile(`(?i)Stock:\s*(\d+)\s+units?`)
	priceRe            = regexp.MustCompile(`(?i)Price:\s*\$(\d+(?:\.\d+)?)`)
	inventoryLineRe    = regexp.MustCompile(`(?i)\(SKU:|Stock:\s*\d+|Price:\s*\$|Category:|Location:`)
	leadingNumberingRe = regexp.MustCompile(`^\d+[.)]\s*`)
)

// cleanContext drops headings, bullets, links and approval chatter from
// upstream output, returning one fact per line.
func cleanContext(raw string) []string {
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		s := strings.TrimSpace(ln)
		if s == "" || headerOnlyRe.MatchString(s) {
			continue
		}
		s = headerPrefixRe.ReplaceAllString(s, "")
		s = bulletRe.ReplaceAllString(s, "")
		s = strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))

		lower := strings.ToLower(s)
		if s == "" || strings.HasPrefix(lower, "http") {
			continue
		}
		skip := false
		for _, re := range skipLineRes {
			if re.MatchString(lower) {
				skip = true
				break
			}
		}
		if !skip {
			lines = append(lines, s)
		}
	}
	return lines
}

// ParseInventory recovers "Name (SKU: X)", "Stock: N units" and
// "Price: $P" facts from cleaned lines. Stock and price may share the line
// with the product name or follow on later lines.
func ParseInventory(lines []string) []InventoryItem {
	var (
		items   []InventoryItem
		current *InventoryItem
	)
	for _, ln := range lines {
		if m := nameSKURe.FindStringSubmatch(ln); m != nil {
			if current != nil {
				items = append(items, *current)
			}
			name := strings.TrimSpace(strings.ReplaceAll(m[1], "*", ""))
			name = leadingNumberingRe.ReplaceAllString(name, "")
			current = &InventoryItem{Name: name, SKU: strings.TrimSpace(m[2])}
		}
		if current == nil {
			continue
		}
		if m := stockRe.FindStringSubmatch(ln); m != nil {
			current.Quantity, _ = strconv.Atoi(m[1])
		}
		if m := priceRe.FindStringSubmatch(ln); m != nil {
			if p, err := strconv.ParseFloat(m[1], 64); err == nil {
				current.Price = &p
			}
		}
	}
	if current != nil {
		items = append(items, *current)
	}
	return items
}

// ComposeFromContext builds a narrative e-mail from upstream agent output.
func ComposeFromContext(recipient, purpose, contextData string, now time.Time, signature string) mail.Message {
	cleaned := cleanContext(contextData)
	items := ParseInventory(cleaned)

	var intro []string
	if purpose != "" {
		intro = append(intro, fmt.Sprintf("This message presents the current %s status.", strings.ToLower(purpose)))
	} else {
		intro = append(intro, "This message presents current status update.")
	}

	var sections []string
	if len(items) > 0 {
		units, value := totals(items)
		if value > 0 {
			intro = append(intro, fmt.Sprintf("We maintain %d total units across %d model(s) with an estimated gross value of $%s.", units, len(items), formatMoney(value)))
		} else {
			intro = append(intro, fmt.Sprintf("We maintain %d total units across %d model(s).", units, len(items)))
		}
		if minQuantity(items) < LowStockThreshold {
			intro = append(intro, "One or more models are approaching low threshold; monitor replenishment schedule.")
		} else {
			intro = append(intro, "All tracked models are within healthy stock ranges; no immediate replenishment required.")
		}

		for _, it := range items {
			price := "(price N/A)"
			if it.Price != nil {
				price = "$" + formatMoney(*it.Price)
			}
			line := fmt.Sprintf("%s (SKU %s) - %d units at %s", it.Name, it.SKU, it.Quantity, price)
			if v, ok := it.Value(); ok {
				line += fmt.Sprintf(" (value $%s)", formatMoney(v))
			}
			sections = append(sections, line+".")
		}
	}
	intro = append(intro, fmt.Sprintf("Snapshot generated %s.", now.UTC().Format("2006-01-02 15:04 UTC")))

	for _, ln := range cleaned {
		if !inventoryLineRe.MatchString(ln) {
			sections = append(sections, ln)
		}
	}

	var body strings.Builder
	body.WriteString("Dear Team,\n\n")
	body.WriteString(strings.Join(intro, " "))
	body.WriteString("\n\n")
	if len(sections) > 0 {
		for _, s := range sections {
			body.WriteString("• " + s + "\n")
		}
		body.WriteString("\n")
	}
	body.WriteString("Please advise if any further breakdown, forward scheduling, or escalation is required.\n\n")
	body.WriteString(signature)

	return mail.Message{To: recipient, Subject: subjectFor(purpose, items), Body: body.String()}
}

func subjectFor(purpose string, items []InventoryItem) string {
	if len(items) == 0 {
		if purpose != "" {
			return purpose + " Update"
		}
		return "Status Update"
	}
	units, value := totals(items)
	if purpose == "" {
		return fmt.Sprintf("Inventory Update - %d Units", units)
	}
	subject := fmt.Sprintf("%s Update - %d Units (%d Model(s))", purpose, units, len(items))
	if value > 0 {
		subject += " | Est. Value $" + formatMoney(value)
	}
	return subject
}

func totals(items []InventoryItem) (units int, value float64) {
	for _, it := range items {
		units += it.Quantity
		if v, ok := it.Value(); ok {
			value += v
		}
	}
	return units, value
}

func minQuantity(items []InventoryItem) int {
	lowest := math.MaxInt
	for _, it := range items {
		if it.Quantity < lowest {
			lowest = it.Quantity
		}
	}
	return lowest
}

// formatMoney renders v with two decimals and thousands separators.
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
