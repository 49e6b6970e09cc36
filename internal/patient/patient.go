package patient

import (
	"fmt"
	"strings"
	"time"
)

const ageUnavailable = "Age calculation unavailable"

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
}

// Input is the caller-supplied demographic payload for one report request.
type Input struct {
	Name          string `json:"name"`
	DateOfBirth   string `json:"date_of_birth"`
	EncounterDate string `json:"encounter_date"`
	ReportDate    string `json:"report_date,omitempty"`
	Guardian      string `json:"guardian,omitempty"`
	UCINumber     string `json:"uci_number,omitempty"`
	Sex           string `json:"sex,omitempty"`
	Language      string `json:"language,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Insurance     string `json:"insurance,omitempty"`
}

// Merge fills blank fields of in from fallback. Fields already present in in
// are never overwritten.
func (in Input) Merge(fallback Input) Input {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return strings.TrimSpace(a)
		}
		return strings.TrimSpace(b)
	}
	return Input{
		Name:          pick(in.Name, fallback.Name),
		DateOfBirth:   pick(in.DateOfBirth, fallback.DateOfBirth),
		EncounterDate: pick(in.EncounterDate, fallback.EncounterDate),
		ReportDate:    pick(in.ReportDate, fallback.ReportDate),
		Guardian:      pick(in.Guardian, fallback.Guardian),
		UCINumber:     pick(in.UCINumber, fallback.UCINumber),
		Sex:           pick(in.Sex, fallback.Sex),
		Language:      pick(in.Language, fallback.Language),
		Address:       pick(in.Address, fallback.Address),
		Phone:         pick(in.Phone, fallback.Phone),
		Insurance:     pick(in.Insurance, fallback.Insurance),
	}
}

// ChronologicalAge is the calendar difference between birth and encounter.
type ChronologicalAge struct {
	Years       int    `json:"years"`
	Months      int    `json:"months"`
	Days        int    `json:"days"`
	TotalDays   int    `json:"total_days"`
	TotalMonths int    `json:"total_months"`
	Formatted   string `json:"formatted"`
	Known       bool   `json:"known"`
}

// Record is the immutable patient context shared by every stage of a report.
type Record struct {
	Name          string           `json:"name"`
	DateOfBirth   string           `json:"date_of_birth"`
	EncounterDate string           `json:"encounter_date"`
	ReportDate    string           `json:"report_date"`
	Guardian      string           `json:"guardian"`
	UCINumber     string           `json:"uci_number"`
	Sex           string           `json:"sex"`
	Language      string           `json:"language"`
	Address       string           `json:"address"`
	Phone         string           `json:"phone"`
	Insurance     string           `json:"insurance"`
	Age           ChronologicalAge `json:"age"`
}

// NewRecord derives the chronological age once. A missing or unparsable date
// produces an unknown age rather than an error.
func NewRecord(in Input, now time.Time) Record {
	rec := Record{
		Name:          strings.TrimSpace(in.Name),
		DateOfBirth:   strings.TrimSpace(in.DateOfBirth),
		EncounterDate: strings.TrimSpace(in.EncounterDate),
		ReportDate:    strings.TrimSpace(in.ReportDate),
		Guardian:      strings.TrimSpace(in.Guardian),
		UCINumber:     strings.TrimSpace(in.UCINumber),
		Sex:           strings.TrimSpace(in.Sex),
		Language:      strings.TrimSpace(in.Language),
		Address:       strings.TrimSpace(in.Address),
		Phone:         strings.TrimSpace(in.Phone),
		Insurance:     strings.TrimSpace(in.Insurance),
	}
	if rec.ReportDate == "" {
		rec.ReportDate = now.Format("01/02/2006")
	}
	rec.Age = ageFromStrings(rec.DateOfBirth, rec.EncounterDate)
	return rec
}

// DisplayName is the name used in prose; it never returns an empty string.
func (r Record) DisplayName() string {
	if r.Name == "" {
		return "the child"
	}
	return r.Name
}

// FirstName returns the first token of the patient name.
func (r Record) FirstName() string {
	fields := strings.Fields(r.Name)
	if len(fields) == 0 {
		return "the child"
	}
	return fields[0]
}

// GuardianName is the caregiver label used in prose.
func (r Record) GuardianName() string {
	if r.Guardian == "" {
		return "The caregiver"
	}
	return r.Guardian
}

// ParseDate accepts the date layouts seen on intake paperwork.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func ageFromStrings(dob, encounter string) ChronologicalAge {
	birth, err := ParseDate(dob)
	if err != nil {
		return ChronologicalAge{Formatted: ageUnavailable}
	}
	at, err := ParseDate(encounter)
	if err != nil {
		return ChronologicalAge{Formatted: ageUnavailable}
	}
	return ComputeAge(birth, at)
}

// ComputeAge returns the calendar age at the given date. Negative spans are
// reported as unknown.
func ComputeAge(birth, at time.Time) ChronologicalAge {
	if at.Before(birth) {
		return ChronologicalAge{Formatted: ageUnavailable}
	}
	years := at.Year() - birth.Year()
	months := int(at.Month()) - int(birth.Month())
	days := at.Day() - birth.Day()
	if days < 0 {
		months--
		// days in the month preceding the encounter month
		days += time.Date(at.Year(), at.Month(), 0, 0, 0, 0, 0, time.UTC).Day()
	}
	if months < 0 {
		years--
		months += 12
	}
	age := ChronologicalAge{
		Years:       years,
		Months:      months,
		Days:        days,
		TotalDays:   int(at.Sub(birth).Hours() / 24),
		TotalMonths: years*12 + months,
		Known:       true,
	}
	age.Formatted = formatAge(age)
	return age
}

func formatAge(a ChronologicalAge) string {
	if a.Years == 0 {
		return fmt.Sprintf("%d %s", a.TotalMonths, plural(a.TotalMonths, "month"))
	}
	return fmt.Sprintf("%d %s, %d %s", a.Years, plural(a.Years, "year"), a.Months, plural(a.Months, "month"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
