package intake

// Callback tokens carried in button presses.
const (
	TokenTypePrefix   = "intake_type_"
	TokenTimePrefix   = "intake_time_"
	TokenBudgetPrefix = "intake_budget_"
	TokenContinue     = "intake_continue"
	TokenSubmit       = "intake_submit"
	TokenCancel       = "intake_cancel"
)

// choice pairs a button token with its display label; slices keep the
// keyboard ordering stable.
type choice struct {
	token string
	label string
}

var projectTypeChoices = []choice{
	{TokenTypePrefix + "web", "Web/Mobile Development"},
	{TokenTypePrefix + "web3", "Web3 Development"},
	{TokenTypePrefix + "animation", "2D/3D Animation"},
	{TokenTypePrefix + "art", "Digital Art/Graphics"},
	{TokenTypePrefix + "mixed", "Mixed Media"},
}

var timeframeChoices = []choice{
	{TokenTimePrefix + "asap", "ASAP"},
	{TokenTimePrefix + "1month", "Within 1 month"},
	{TokenTimePrefix + "3months", "1-3 months"},
	{TokenTimePrefix + "6months", "3-6 months"},
	{TokenTimePrefix + "6plus", "6+ months"},
	{TokenTimePrefix + "flexible", "Flexible"},
}

var budgetChoices = []choice{
	{TokenBudgetPrefix + "5k", "Under $5,000"},
	{TokenBudgetPrefix + "15k", "$5,000 - $15,000"},
	{TokenBudgetPrefix + "50k", "$15,000 - $50,000"},
	{TokenBudgetPrefix + "100k", "$50,000 - $100,000"},
	{TokenBudgetPrefix + "100k_plus", "Over $100,000"},
}

var (
	projectTypeLabels = labelIndex(projectTypeChoices)
	timeframeLabels   = labelIndex(timeframeChoices)
	budgetLabels      = labelIndex(budgetChoices)
)

func labelIndex(choices []choice) map[string]string {
	index := make(map[string]string, len(choices))
	for _, c := range choices {
		index[c.token] = c.label
	}
	return index
}

// Display emoji per button, keyed by token.
var choiceEmojis = map[string]string{
	TokenTypePrefix + "web":         "💻",
	TokenTypePrefix + "web3":        "🔗",
	TokenTypePrefix + "animation":   "🎬",
	TokenTypePrefix + "art":         "🎨",
	TokenTypePrefix + "mixed":       "🎭",
	TokenTimePrefix + "asap":        "🚀",
	TokenTimePrefix + "1month":      "📅",
	TokenTimePrefix + "3months":     "📆",
	TokenTimePrefix + "6months":     "🗓️",
	TokenTimePrefix + "6plus":       "⏳",
	TokenTimePrefix + "flexible":    "🤝",
	TokenBudgetPrefix + "5k":        "💵",
	TokenBudgetPrefix + "15k":       "💰",
	TokenBudgetPrefix + "50k":       "💎",
	TokenBudgetPrefix + "100k":      "💸",
	TokenBudgetPrefix + "100k_plus": "🏆",
}
