package department

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// Department is a statically configured organizational unit. Title and
// Description scope classification and summarization prompts.
type Department struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Registry resolves department names against the fixed configured set.
type Registry struct {
	ordered []Department
	byKey   map[string]Department
}

// NewRegistry validates the department set and builds the lookup table.
func NewRegistry(depts []Department) (*Registry, error) {
	if len(depts) == 0 {
		return nil, common.E(common.KindValidation, "department.registry", "at least one department is required", nil)
	}
	r := &Registry{byKey: make(map[string]Department, 2*len(depts))}
	for _, d := range depts {
		if d.Name == "" || d.Title == "" {
			return nil, common.E(common.KindValidation, "department.registry",
				fmt.Sprintf("department needs both name and title: %+v", d), nil)
		}
		nameKey := canonical(d.Name)
		if _, dup := r.byKey[nameKey]; dup {
			return nil, common.E(common.KindValidation, "department.registry",
				"duplicate department name: "+d.Name, nil)
		}
		r.ordered = append(r.ordered, d)
		r.byKey[nameKey] = d
		// Titles resolve too, so classifier output may use either form.
		r.byKey[canonical(d.Title)] = d
	}
	return r, nil
}

// Defaults returns the built-in registry.
func Defaults() *Registry {
	r, err := NewRegistry(defaultDepartments)
	if err != nil {
		panic(err) // static data, validated by tests
	}
	return r
}

// Load reads a department set from a YAML file; empty path means defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, common.E(common.KindValidation, "department.load", "read departments file", err)
	}
	var doc struct {
		Departments []Department `yaml:"departments"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, common.E(common.KindValidation, "department.load", "parse departments file", err)
	}
	return NewRegistry(doc.Departments)
}

// Resolve maps a free-form department name to its full record.
// Unresolvable names are a hard validation failure, never a silent drop.
func (r *Registry) Resolve(name string) (Department, error) {
	if d, ok := r.byKey[canonical(name)]; ok {
		return d, nil
	}
	return Department{}, common.E(common.KindValidation, "department.resolve",
		"unknown department: "+name, nil)
}

// Names returns the canonical department names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.Name
	}
	return out
}

// Titles returns the display titles in configuration order.
func (r *Registry) Titles() []string {
	out := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.Title
	}
	return out
}

// All returns the departments in configuration order.
func (r *Registry) All() []Department {
	return append([]Department(nil), r.ordered...)
}

func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.Join(strings.Fields(s), "_")
	return s
}

var defaultDepartments = []Department{
	{
		Name:  "rolling_stock_operations",
		Title: "Rolling Stock Operations",
		Description: "Responsible for the availability, safety, and reliability of trains and depots. " +
			"Deals with engineering drawings, maintenance job cards, incident reports, and IoT condition monitoring data. " +
			"Front-line managers rely on this department for quick access to actionable insights on train readiness, " +
			"shift planning, and safety compliance.",
	},
	{
		Name:  "procurement",
		Title: "Procurement",
		Description: "Manages vendor contracts, spare parts, and services essential for metro operations. " +
			"Handles purchase orders, vendor invoices, and procurement correspondence. " +
			"Needs visibility into engineering design changes and maintenance requirements " +
			"to avoid misaligned contracts and ensure timely availability of critical supplies.",
	},
	{
		Name:  "hr_safety",
		Title: "HR & Safety",
		Description: "Ensures employee well-being, workforce training, and compliance with safety regulations. " +
			"Manages HR policies, safety circulars, and incident reports while coordinating refresher training " +
			"based on the latest directives from safety authorities. " +
			"Plays a key role in bridging human capital readiness with operational safety.",
	},
	{
		Name:  "executive_management",
		Title: "Executive Management",
		Description: "Provides strategic leadership, governance, and regulatory compliance oversight. " +
			"Engages with board meeting minutes, legal opinions, regulatory directives, " +
			"and financial compliance reports. " +
			"Ensures cross-departmental alignment, institutional knowledge retention, and timely decision-making " +
			"for corridor expansion, depot integration, and new technology adoption.",
	},
}
