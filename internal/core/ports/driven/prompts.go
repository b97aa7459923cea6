package driven

// Names of the prompts the chat service loads.
const (
	// PromptShopAssistant is the system prompt. It holds exactly one %s,
	// replaced by the formatted product list.
	PromptShopAssistant = "shop_assistant"

	// PromptNoProducts stands in for the product list when retrieval came
	// back empty.
	PromptNoProducts = "no_products"
)

// PromptStore serves prompt text by name.
type PromptStore interface {
	Load(name string) (string, error)

	// Reload forgets cached text so the next Load reads fresh.
	Reload()
}
