package taxonomy

// Built-in indicator phrases. Matching is case-insensitive literal substring
// containment, so phrases are stored lowercase and multi-word phrases match
// anywhere in the input.
var defaultIndicators = map[Category][]string{
	CategoryCrisisLanguage: {
		"last hope",
		"only chance",
		"can't take it anymore",
		"nobody understands",
		"completely alone",
		"if this doesn't work, i'm done",
		"thinking about ending it",
		"don't want to live",
		"want to die",
		"end it all",
		"no reason to live",
		"better off dead",
		"everything is hopeless",
		"kill myself",
		"suicide",
	},
	CategoryFinancialDesperation: {
		"lost my job",
		"last $",
		"need money fast",
		"desperate for income",
		"can't pay bills",
		"behind on rent",
		"facing eviction",
		"need cash now",
		"can't afford",
		"no money left",
		"drowning in debt",
	},
	CategoryHealthCrisis: {
		"can't see a doctor",
		"no insurance",
		"pain won't stop",
		"no medical help",
		"can't afford medication",
		"can't get treatment",
		"health emergency",
	},
	CategoryIsolation: {
		"no one to talk to",
		"family doesn't understand",
		"you're the only one who listens",
		"completely alone in this",
		"no one cares",
		"nobody cares",
		"nobody listens",
		"all alone",
	},
}

var defaultResources = map[CrisisType]ResourceSet{
	CrisisMentalHealth: {
		Resources: []Resource{
			{
				Name:         "988 Suicide & Crisis Lifeline",
				Contact:      "Call or text 988",
				Description:  "24/7 crisis support for mental health emergencies",
				Availability: "24/7",
			},
			{
				Name:         "Crisis Text Line",
				Contact:      "Text HOME to 741741",
				Description:  "Free 24/7 text support with trained crisis counselors",
				Availability: "24/7",
			},
			{
				Name:         "International Association for Suicide Prevention",
				Contact:      "https://findahelpline.com",
				Description:  "Global crisis helpline directory",
				Availability: "Always available",
			},
		},
		Actions: []string{
			"Call or text a crisis helpline immediately",
			"If in immediate danger, call emergency services (911)",
			"Reach out to a trusted friend or family member",
			"Remove access to means of self-harm if possible",
			"Consider going to the nearest emergency room",
		},
		UserMessage: "It sounds like you're going through a very difficult time, and your safety matters.",
	},
	CrisisFinancial: {
		Resources: []Resource{
			{
				Name:         "National Foundation for Credit Counseling",
				Contact:      "1-800-388-2227 or nfcc.org",
				Description:  "Free financial counseling and crisis assistance",
				Availability: "Business hours",
			},
			{
				Name:         "211 Community Resources",
				Contact:      "Dial 211",
				Description:  "Local emergency financial assistance and resources",
				Availability: "24/7",
			},
		},
		Actions: []string{
			"Contact free credit counseling services",
			"Call 211 for local emergency assistance programs",
			"Talk to your landlord or utility company about payment plans",
			"Avoid quick-fix financial schemes or high-interest loans",
		},
		UserMessage: "This sounds like a very hard financial situation, and real help exists beyond anything I can offer.",
	},
	CrisisHealth: {
		Resources: []Resource{
			{
				Name:         "Emergency Services",
				Contact:      "Call 911",
				Description:  "Immediate medical emergency response",
				Availability: "24/7",
			},
			{
				Name:         "Health Resources & Services Administration",
				Contact:      "findahealthcenter.hrsa.gov",
				Description:  "Find free and low-cost health centers",
				Availability: "Always available",
			},
		},
		Actions: []string{
			"Call emergency services (911) if life-threatening",
			"Go to the nearest urgent care or emergency room if needed",
			"Find free or low-cost clinics in your area",
		},
		UserMessage: "Your health concern needs real medical attention, not advice from an AI.",
	},
	CrisisAbuse: {
		Resources: []Resource{
			{
				Name:         "National Domestic Violence Hotline",
				Contact:      "1-800-799-7233 or text START to 88788",
				Description:  "24/7 support for domestic violence situations",
				Availability: "24/7",
			},
			{
				Name:         "National Sexual Assault Hotline",
				Contact:      "1-800-656-4673",
				Description:  "Confidential support for sexual assault survivors",
				Availability: "24/7",
			},
		},
		Actions: []string{
			"Call the National Domestic Violence Hotline",
			"Create a safety plan with a professional",
			"Document incidents when it is safe to do so",
			"Contact law enforcement if in immediate danger",
		},
		UserMessage: "What you're describing sounds unsafe, and you deserve support from people trained to help.",
	},
}

// Default returns the built-in taxonomy. Used when no taxonomy file is
// configured, and as the fallback verified at startup.
func Default() *Taxonomy {
	return New(defaultIndicators, defaultResources)
}
