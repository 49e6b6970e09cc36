package scoring

import (
	"fmt"
	"strings"
)

var functionalImplications = map[string]map[Classification]string{
	"cognitive": {
		AboveAverage: "demonstrates advanced problem-solving, memory, and learning abilities with strong visual processing skills",
		Average:      "shows age-appropriate cognitive processing, problem-solving, and learning capacity",
		BelowAverage: "experiences mild challenges in problem-solving and cognitive processing that may impact learning",
		ExtremelyLow: "demonstrates significant cognitive delays requiring intensive intervention support",
	},
	"receptive communication": {
		AboveAverage: "exceptional language comprehension with advanced understanding of instructions and vocabulary",
		Average:      "age-appropriate understanding of spoken language and ability to follow instructions",
		BelowAverage: "mild difficulties understanding spoken language and following complex instructions",
		ExtremelyLow: "significant language comprehension delays affecting daily communication and learning",
	},
	"expressive communication": {
		AboveAverage: "advanced verbal expression with rich vocabulary and complex sentence formation",
		Average:      "age-appropriate verbal expression and communication skills",
		BelowAverage: "limited verbal expression that may impact social communication",
		ExtremelyLow: "severe expressive language delays requiring intensive speech therapy intervention",
	},
	"fine motor": {
		AboveAverage: "exceptional hand-eye coordination and manipulation skills beyond age expectations",
		Average:      "age-appropriate fine motor control and manipulation abilities",
		BelowAverage: "mild fine motor delays that may impact self-care and pre-academic skills",
		ExtremelyLow: "significant fine motor delays affecting daily living skills and academic readiness",
	},
	"gross motor": {
		AboveAverage: "advanced gross motor coordination, balance, and movement skills",
		Average:      "age-appropriate gross motor development and movement patterns",
		BelowAverage: "mild gross motor delays that may impact mobility and play participation",
		ExtremelyLow: "significant gross motor delays requiring intensive physical therapy intervention",
	},
}

// FunctionalImplication looks up the domain/band text. Domains without an
// entry get a generic follow-up statement.
func FunctionalImplication(domain string, c Classification) string {
	key := strings.ToLower(strings.TrimSpace(domain))
	if text, ok := functionalImplications[key][c]; ok {
		return text
	}
	return fmt.Sprintf("requires further assessment in %s domain", domain)
}
