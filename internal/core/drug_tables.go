package core

import (
	"strings"

	"pharmacore/pkg/domain"
)

type interactionEntry struct {
	drugA       string
	drugB       string
	severity    domain.InteractionSeverity
	description string
}

var interactionTable = []interactionEntry{
	{"warfarin", "aspirin", domain.InteractionMajor, "Increased risk of bleeding"},
	{"warfarin", "ibuprofen", domain.InteractionMajor, "Increased risk of gastrointestinal bleeding"},
	{"simvastatin", "clarithromycin", domain.InteractionContraindicated, "Raised statin levels with risk of rhabdomyolysis"},
	{"sildenafil", "nitroglycerin", domain.InteractionContraindicated, "Severe hypotension"},
	{"fluoxetine", "tramadol", domain.InteractionMajor, "Risk of serotonin syndrome and seizures"},
	{"methotrexate", "trimethoprim", domain.InteractionMajor, "Bone marrow suppression"},
	{"digoxin", "amiodarone", domain.InteractionMajor, "Digoxin toxicity"},
	{"ciprofloxacin", "tizanidine", domain.InteractionContraindicated, "Marked hypotension and sedation"},
	{"clopidogrel", "omeprazole", domain.InteractionModerate, "Reduced antiplatelet effect"},
	{"lisinopril", "potassium", domain.InteractionModerate, "Risk of hyperkalaemia"},
}

var controlledSubstances = []string{
	"oxycodone", "morphine", "fentanyl", "alprazolam", "diazepam",
	"lorazepam", "codeine", "tramadol", "methylphenidate", "hydrocodone",
}

// FindInteractions checks every pair of medications against the interaction table.
func FindInteractions(medications []domain.PrescribedMedication) []domain.DrugInteraction {
	out := []domain.DrugInteraction{}
	for i := 0; i < len(medications); i++ {
		for j := i + 1; j < len(medications); j++ {
			a := strings.ToLower(medications[i].Name)
			b := strings.ToLower(medications[j].Name)
			for _, e := range interactionTable {
				if (strings.Contains(a, e.drugA) && strings.Contains(b, e.drugB)) ||
					(strings.Contains(a, e.drugB) && strings.Contains(b, e.drugA)) {
					out = append(out, domain.DrugInteraction{
						DrugA:       medications[i].Name,
						DrugB:       medications[j].Name,
						Severity:    e.severity,
						Description: e.description,
					})
				}
			}
		}
	}
	return out
}

// IsControlledSubstance reports whether the medication name contains a listed controlled substance.
func IsControlledSubstance(name string) bool {
	n := strings.ToLower(name)
	for _, c := range controlledSubstances {
		if strings.Contains(n, c) {
			return true
		}
	}
	return false
}
