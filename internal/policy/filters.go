package policy

import "encoding/json"

const (
	SensitivityNormal     = "Normal"
	SensitivitySensitive  = "Sensitive"
	SensitivityRestricted = "Restricted"
)

// Filters narrow what content a request may touch. Present keys combine with AND;
// an empty Sensitivity means every level is allowed.
type Filters struct {
	Department     string
	Sensitivity    []string
	Specialization string
}

// DeriveFilters maps user attributes onto request filters. Clearance below 3
// sees Normal only, 3 and 4 add Sensitive, 5 and above is unrestricted.
func DeriveFilters(attrs Attributes) Filters {
	var f Filters

	if attrs.Department != "" {
		f.Department = attrs.Department
	}

	if attrs.Clearance != nil {
		switch c := *attrs.Clearance; {
		case c < 3:
			f.Sensitivity = []string{SensitivityNormal}
		case c < 5:
			f.Sensitivity = []string{SensitivityNormal, SensitivitySensitive}
		}
	}

	if attrs.Specialization != "" {
		f.Specialization = attrs.Specialization
	}

	return f
}

func (f Filters) IsEmpty() bool {
	return f.Department == "" && len(f.Sensitivity) == 0 && f.Specialization == ""
}

// Map renders the filters in their wire form: a single sensitivity level is a
// string, two or more are a list.
func (f Filters) Map() map[string]any {
	out := make(map[string]any, 3)
	if f.Department != "" {
		out["department"] = f.Department
	}
	switch len(f.Sensitivity) {
	case 0:
	case 1:
		out["sensitivity"] = f.Sensitivity[0]
	default:
		levels := make([]string, len(f.Sensitivity))
		copy(levels, f.Sensitivity)
		out["sensitivity"] = levels
	}
	if f.Specialization != "" {
		out["specialization"] = f.Specialization
	}
	return out
}

func (f Filters) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}

func (f *Filters) UnmarshalJSON(data []byte) error {
	var raw struct {
		Department     string          `json:"department"`
		Sensitivity    json.RawMessage `json:"sensitivity"`
		Specialization string          `json:"specialization"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filters{Department: raw.Department, Specialization: raw.Specialization}
	if len(raw.Sensitivity) == 0 || string(raw.Sensitivity) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Sensitivity, &single); err == nil {
		f.Sensitivity = []string{single}
		return nil
	}
	return json.Unmarshal(raw.Sensitivity, &f.Sensitivity)
}
