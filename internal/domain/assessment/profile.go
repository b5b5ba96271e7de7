package assessment

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// UserProfile is voluntary demographic context. Nothing here is required.
type UserProfile struct {
	Age        int               `json:"age,omitempty"`
	Gender     string            `json:"gender,omitempty"`
	Region     string            `json:"region,omitempty"`
	Profession string            `json:"profession,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// UnmarshalJSON accepts age as a number or numeric string and ignores values it cannot coerce.
func (p *UserProfile) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := UserProfile{}
	for k, v := range raw {
		switch strings.ToLower(k) {
		case "age":
			out.Age = coerceAge(v)
		case "gender":
			out.Gender = coerceString(v)
		case "region":
			out.Region = coerceString(v)
		case "profession":
			out.Profession = coerceString(v)
		case "extra":
			if m, ok := v.(map[string]any); ok {
				for ek, ev := range m {
					if s := coerceString(ev); s != "" {
						if out.Extra == nil {
							out.Extra = map[string]string{}
						}
						out.Extra[ek] = s
					}
				}
			}
		default:
			if s := coerceString(v); s != "" {
				if out.Extra == nil {
					out.Extra = map[string]string{}
				}
				out.Extra[k] = s
			}
		}
	}
	*p = out
	return nil
}

func coerceAge(v any) int {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}
	if n < 0 || n > 130 {
		return 0
	}
	return int(n)
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// Field is one labelled demographic value.
type Field struct {
	Name  string
	Value string
}

// Fields lists the known values in a fixed order: age, gender, region,
// profession, then extra keys sorted.
func (p UserProfile) Fields() []Field {
	var out []Field
	if p.Age > 0 {
		out = append(out, Field{"age", strconv.Itoa(p.Age)})
	}
	if p.Gender != "" {
		out = append(out, Field{"gender", p.Gender})
	}
	if p.Region != "" {
		out = append(out, Field{"region", p.Region})
	}
	if p.Profession != "" {
		out = append(out, Field{"profession", p.Profession})
	}
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Field{k, p.Extra[k]})
	}
	return out
}

func (p UserProfile) Empty() bool { return len(p.Fields()) == 0 }
