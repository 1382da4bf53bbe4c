package domain

// DefaultModules are the built-in courses. Their keys are reserved.
func DefaultModules() []Module {
	return []Module{
		{
			Key:         "qxu5031",
			Code:        "QXU5031",
			Title:       "Polymer Chemistry",
			Description: "Intro, MW, Step-Growth & Radical",
			ColorTheme:  "indigo",
			IconKey:     "bookOpen",
			Order:       1,
			IsDefault:   true,
		},
		{
			Key:         "qxu6033",
			Code:        "QXU6033",
			Title:       "Advanced Chemistry",
			Description: "CRP, Dendrimers & Self-Assembly",
			ColorTheme:  "pink",
			IconKey:     "beaker",
			Order:       2,
			IsDefault:   true,
		},
	}
}

// IsReservedModuleKey reports whether key belongs to a default module.
func IsReservedModuleKey(key string) bool {
	for _, m := range DefaultModules() {
		if m.Key == key {
			return true
		}
	}
	return false
}

// DefaultLessons is the starter curriculum seeded on first run.
func DefaultLessons() []Lesson {
	return []Lesson{
		{
			ID:          "default-introduction-to-polymers",
			Title:       "Introduction to Polymers",
			Description: "Learn the basics of polymer structure",
			Difficulty:  "Beginner",
			XPReward:    50,
			Order:       1,
			ModuleKey:   "qxu5031",
			IsDefault:   true,
			Questions: []Question{
				{
					Text: "What is a polymer?",
					Options: []string{
						"A small molecule",
						"A large molecule made of repeating units",
						"A type of metal",
						"A chemical element",
					},
					CorrectIndex: 1,
					Explanation:  "Polymers are large molecules composed of many repeating subunits called monomers.",
				},
				{
					Text: "What is a monomer?",
					Options: []string{
						"The repeating unit in a polymer",
						"A type of polymer",
						"A chemical bond",
						"A solvent",
					},
					CorrectIndex: 0,
					Explanation:  "Monomers are the small molecular building blocks that link together to form polymers.",
				},
				{
					Text:         "Which of these is a natural polymer?",
					Options:      []string{"Nylon", "Polyethylene", "Cellulose", "PVC"},
					CorrectIndex: 2,
					Explanation:  "Cellulose is a natural polymer found in plant cell walls, while the others are synthetic.",
				},
			},
		},
		{
			ID:          "default-polymerization-types",
			Title:       "Polymerization Types",
			Description: "Master addition and condensation polymerization",
			Difficulty:  "Intermediate",
			XPReward:    75,
			Order:       2,
			ModuleKey:   "qxu5031",
			IsDefault:   true,
			Questions: []Question{
				{
					Text: "In addition polymerization, monomers join by:",
					Options: []string{
						"Losing small molecules like water",
						"Breaking double bonds without losing atoms",
						"Dissolving in solvent",
						"Heating to high temperatures",
					},
					CorrectIndex: 1,
					Explanation:  "Addition polymerization involves breaking double bonds in monomers and forming single bonds without losing any atoms.",
				},
				{
					Text: "Condensation polymerization produces:",
					Options: []string{
						"Only the polymer",
						"Polymer and small molecules like water",
						"Only water",
						"Carbon dioxide",
					},
					CorrectIndex: 1,
					Explanation:  "Condensation polymerization forms a polymer and releases small molecules (like water or HCl) as byproducts.",
				},
				{
					Text:         "Which polymer is made by addition polymerization?",
					Options:      []string{"Nylon", "Polyester", "Polystyrene", "Kevlar"},
					CorrectIndex: 2,
					Explanation:  "Polystyrene is made by addition polymerization of styrene monomers, while nylon, polyester, and Kevlar use condensation.",
				},
			},
		},
		{
			ID:          "default-polymer-properties",
			Title:       "Polymer Properties",
			Description: "Understand thermoplastics vs thermosets",
			Difficulty:  "Intermediate",
			XPReward:    75,
			Order:       3,
			ModuleKey:   "qxu5031",
			IsDefault:   true,
			Questions: []Question{
				{
					Text: "Thermoplastics can be:",
					Options: []string{
						"Melted and reshaped multiple times",
						"Only shaped once",
						"Never melted",
						"Dissolved but not melted",
					},
					CorrectIndex: 0,
					Explanation:  "Thermoplastics soften when heated and can be reshaped multiple times, making them recyclable.",
				},
				{
					Text: "Thermosets are characterized by:",
					Options: []string{
						"Linear polymer chains",
						"Cross-linked polymer networks",
						"Ability to melt easily",
						"Low molecular weight",
					},
					CorrectIndex: 1,
					Explanation:  "Thermosets have extensively cross-linked structures that prevent melting and make them permanently rigid.",
				},
				{
					Text:         "Which is an example of a thermoset?",
					Options:      []string{"Polyethylene", "Polypropylene", "Epoxy resin", "PVC"},
					CorrectIndex: 2,
					Explanation:  "Epoxy resin is a thermoset that forms irreversible cross-links when cured.",
				},
			},
		},
	}
}
