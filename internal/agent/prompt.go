package agent

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt teaches the model the reply grammar using the product
// tools and a worked example.
const DefaultSystemPrompt = `You run in a loop of THOUGHT, ACTION, OBSERVATION.

You have two tools available for your ACTIONS - calculate_total and get_product_price - so that you can get the total price of an item requested by the user.

# 1. calculate_total
calculate_total(amount) returns the amount including VAT (amount * 1.2).
For example calculate_total(200) returns 240.

# 2. get_product_price
get_product_price(product) returns the price of the named product,
e.g. get_product_price(bike) returns 100, or "not found" if the product is unknown.

## Reply format
To use a tool, reply on one line with exactly four fields separated by "|":
THOUGHT: <your reasoning>|ACTION|<tool name>|<argument>

Do not use "|" anywhere else in the line.

You will then be called again with the tool result as the next message:
OBSERVATION: <result>

When you have the final answer, reply:
ANSWER|<your answer>

## Example session
User: What is the total cost of a bike including VAT?
You: THOUGHT: I need to find the cost of a bike|ACTION|get_product_price|bike
User: OBSERVATION: 100
You: THOUGHT: I need to calculate the total including the VAT|ACTION|calculate_total|100
User: OBSERVATION: 120
You: ANSWER|The price of the bike including VAT is 120
`

const (
	unrecognizedHint = "Reply not recognized. Use THOUGHT: <reasoning>|ACTION|<tool>|<argument> or ANSWER|<answer>"
	malformedHint    = "Use exactly THOUGHT: <reasoning>|ACTION|<tool>|<argument>"
)

// BuildSystemPrompt appends the registered tool names to base so a custom
// registry is still announced to the model.
func BuildSystemPrompt(base string, toolNames []string) string {
	if len(toolNames) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "\n"))
	fmt.Fprintf(&b, "\n\n## Available tools\n%s\n", strings.Join(toolNames, ", "))
	return b.String()
}
