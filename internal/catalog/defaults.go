package catalog

func defaultRanks() []Rank {
	return []Rank{
		{ID: "shadow-enchanter", Name: "Shadow Enchanter", Ladder: LadderServerwide, Tier: 1, Price: 999,
			Description: "A mystical rank with basic flying abilities",
			Features:    []string{"/fly", "3 /sethome", "colored chat", "special prefix"}},
		{ID: "void-walker", Name: "Void Walker", Ladder: LadderServerwide, Tier: 2, Price: 1999,
			Description: "Master of the void with enhanced storage",
			Features:    []string{"/enderchest", "5 /sethome", "custom join messages"}},
		{ID: "ethereal-warden", Name: "Ethereal Warden", Ladder: LadderServerwide, Tier: 3, Price: 2999,
			Description: "Guardian of the realm with healing powers",
			Features:    []string{"/heal", "/feed", "7 /sethome", "particle effects"}},
		{ID: "astral-guardian", Name: "Astral Guardian", Ladder: LadderServerwide, Tier: 4, Price: 3999,
			Description: "Supreme cosmic being with ultimate abilities",
			Features:    []string{"/nick", "10 /sethome", "custom particle trails"}},

		{ID: "citizen", Name: "Citizen", Ladder: LadderTowny, Tier: 1, Price: 499,
			Description: "Basic towny privileges",
			Features:    []string{"Create town", "Claim 5 town plots", "Set 1 town spawn"}},
		{ID: "merchant", Name: "Merchant", Ladder: LadderTowny, Tier: 2, Price: 999,
			Description: "Enhanced trading capabilities",
			Features:    []string{"2 shops", "10 plots"}},
		{ID: "councilor", Name: "Councilor", Ladder: LadderTowny, Tier: 3, Price: 1499,
			Description: "Town management abilities",
			Features:    []string{"5 shops", "town chat colors"}},
		{ID: "mayor", Name: "Mayor", Ladder: LadderTowny, Tier: 4, Price: 1999,
			Description: "Full town control",
			Features:    []string{"multiple spawns", "welcome message"}},
		{ID: "governor", Name: "Governor", Ladder: LadderTowny, Tier: 5, Price: 2499,
			Description: "Nation creation privileges",
			Features:    []string{"create nation", "nation chat prefix"}},
		{ID: "noble", Name: "Noble", Ladder: LadderTowny, Tier: 6, Price: 2999,
			Description: "Advanced nation features",
			Features:    []string{"nation particles", "custom spawn"}},
		{ID: "duke", Name: "Duke", Ladder: LadderTowny, Tier: 7, Price: 3499,
			Description: "Nation-wide abilities",
			Features:    []string{"nation-wide effects", "custom banner"}},
		{ID: "king", Name: "King", Ladder: LadderTowny, Tier: 8, Price: 3999,
			Description: "Supreme nation control",
			Features:    []string{"nation commands", "custom laws"}},
		{ID: "divine-ruler", Name: "Divine Ruler", Ladder: LadderTowny, Tier: 9, Price: 4499,
			Description: "Ultimate towny authority",
			Features:    []string{"divine powers", "custom events"}},
	}
}

// Все апгрейды стоят одинаково: разница между соседними рангами.
func defaultUpgrades() []Upgrade {
	edge := func(id, from, to string) Upgrade {
		return Upgrade{ID: id, From: from, To: to, Price: 499}
	}
	ups := []Upgrade{
		edge("shadow-to-void", "shadow-enchanter", "void-walker"),
		edge("void-to-ethereal", "void-walker", "ethereal-warden"),
		edge("ethereal-to-astral", "ethereal-warden", "astral-guardian"),
		edge("citizen-to-merchant", "citizen", "merchant"),
		edge("merchant-to-councilor", "merchant", "councilor"),
		edge("councilor-to-mayor", "councilor", "mayor"),
		edge("mayor-to-governor", "mayor", "governor"),
		edge("governor-to-noble", "governor", "noble"),
		edge("noble-to-duke", "noble", "duke"),
		edge("duke-to-king", "duke", "king"),
		edge("king-to-divine", "king", "divine-ruler"),
	}

	byID := make(map[string]Rank)
	for _, r := range defaultRanks() {
		byID[r.ID] = r
	}
	for i := range ups {
		to := byID[ups[i].To]
		ups[i].Description = "Upgrade to " + to.Name + " rank"
		ups[i].Features = to.Features
	}
	return ups
}
