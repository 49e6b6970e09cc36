package extract

import (
	"regexp"
	"strings"

	"github.com/joelkehle/otreport/internal/patient"
)

const datePattern = `(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2}|[A-Z][a-z]+\.? \d{1,2}, \d{4})`

// Ordered per field; the first pattern that matches wins.
var demographicPatterns = map[string][]*regexp.Regexp{
	"name": {
		regexp.MustCompile(`(?im)^[ \t]*(?:Patient|Child|Client)(?:'s)?[ \t]+Name[ \t]*:[ \t]*(.+)$`),
		regexp.MustCompile(`(?im)^[ \t]*Name[ \t]*:[ \t]*(.+)$`),
		regexp.MustCompile(`(?im)^[ \t]*(?:Patient|Child|Client)[ \t]*:[ \t]*(.+)$`),
	},
	"dob": {
		regexp.MustCompile(`(?i)\b(?:Date of Birth|DOB|Birth ?Date|Born)[ \t]*:?[ \t]*` + datePattern),
	},
	"encounter": {
		regexp.MustCompile(`(?i)\b(?:Date of (?:Evaluation|Service|Encounter|Assessment)|Evaluation Date|Encounter Date|DOS)[ \t]*:?[ \t]*` + datePattern),
	},
	"sex": {
		regexp.MustCompile(`(?i)\b(?:Sex|Gender)[ \t]*:[ \t]*(Male|Female|Non-binary|Other|M|F)\b`),
	},
	"language": {
		regexp.MustCompile(`(?im)\b(?:Primary[ \t]+)?Language(?:\(s\))?[ \t]*:[ \t]*(.+)$`),
	},
	"uci": {
		regexp.MustCompile(`(?i)\bUCI(?:[ \t]*(?:Number|No\.?|#))?[ \t]*[:#][ \t]*([A-Za-z0-9\-]+)`),
		regexp.MustCompile(`(?i)\b(?:Medical Record(?: Number)?|MRN|Client ID)[ \t]*[:#][ \t]*([A-Za-z0-9\-]+)`),
		regexp.MustCompile(`(?im)^[ \t]*ID[ \t]*[:#][ \t]*([A-Za-z0-9\-]+)`),
	},
	"guardian": {
		regexp.MustCompile(`(?im)^[ \t]*(?:Parent(?:/Guardian)?|Guardian|Mother|Father|Caregiver)(?:'s)?(?:[ \t]+Name)?[ \t]*:[ \t]*(.+)$`),
	},
	"address": {
		regexp.MustCompile(`(?im)^[ \t]*(?:Home[ \t]+)?Address[ \t]*:[ \t]*(.+)$`),
	},
	"phone": {
		regexp.MustCompile(`(?i)\b(?:Phone|Telephone|Tel|Cell)[ \t]*(?:Number)?[ \t]*[:#]?[ \t]*(\(?\d{3}\)?[ \t.\-]?\d{3}[ \t.\-]?\d{4})`),
	},
	"insurance": {
		regexp.MustCompile(`(?im)^[ \t]*(?:Insurance|Payer|Funding Source)[ \t]*:[ \t]*(.+)$`),
	},
}

var columnBreak = regexp.MustCompile(`[ \t]{2,}|\t`)

// ExtractDemographics reads facesheet fields. Values laid out in columns are
// cut at the first wide gap.
func ExtractDemographics(text string) patient.Input {
	get := func(field string) string {
		for _, re := range demographicPatterns[field] {
			if m := re.FindStringSubmatch(text); len(m) == 2 {
				v := strings.TrimSpace(columnBreak.Split(strings.TrimSpace(m[1]), 2)[0])
				if v != "" {
					return v
				}
			}
		}
		return ""
	}
	return patient.Input{
		Name:          get("name"),
		DateOfBirth:   get("dob"),
		EncounterDate: get("encounter"),
		Sex:           expandSex(get("sex")),
		Language:      get("language"),
		UCINumber:     get("uci"),
		Guardian:      get("guardian"),
		Address:       get("address"),
		Phone:         get("phone"),
		Insurance:     get("insurance"),
	}
}

func expandSex(s string) string {
	switch strings.ToUpper(s) {
	case "M":
		return "Male"
	case "F":
		return "Female"
	}
	return s
}
