package suite

// Names of the built-in suites.
const (
	Websites          = "websites"
	InstantMessaging  = "instant_messaging"
	Circumvention     = "circumvention"
	Performance       = "performance"
	ExperimentalSuite = "experimental"
)

const notAvailable = "TestResults_NotAvailable"

var catalog = []Definition{
	{
		Name:               Websites,
		Title:              "Test_Websites_Fullname",
		Description:        "Dashboard_Websites_Card_Description",
		Overview:           "Dashboard_Websites_Overview_Paragraph",
		Icon:               "test_websites",
		Icon24:             "test_websites_24",
		Color:              "color_indigo6",
		Theme:              "Theme_App_NoActionBar_Websites",
		ThemeLight:         "Theme_App_Light_Websites",
		Animation:          "anim/websites.json",
		UnavailableResults: notAvailable,
		Baseline:           []string{"web_connectivity"},
	},
	{
		Name:               InstantMessaging,
		Title:              "Test_InstantMessaging_Fullname",
		Description:        "Dashboard_InstantMessaging_Card_Description",
		Overview:           "Dashboard_InstantMessaging_Overview_Paragraph",
		Icon:               "test_instant_messaging",
		Icon24:             "test_instant_messaging_24",
		Color:              "color_cyan6",
		Theme:              "Theme_App_NoActionBar_InstantMessaging",
		ThemeLight:         "Theme_App_Light_InstantMessaging",
		Animation:          "anim/instant_messaging.json",
		UnavailableResults: notAvailable,
		Baseline:           []string{"whatsapp", "telegram", "facebook_messenger", "signal"},
	},
	{
		Name:               Circumvention,
		Title:              "Test_Circumvention_Fullname",
		Description:        "Dashboard_Circumvention_Card_Description",
		Overview:           "Dashboard_Circumvention_Overview_Paragraph",
		Icon:               "test_circumvention",
		Icon24:             "test_circumvention_24",
		Color:              "color_pink6",
		Theme:              "Theme_App_NoActionBar_Circumvention",
		ThemeLight:         "Theme_App_Light_Circumvention",
		Animation:          "anim/circumvention.json",
		UnavailableResults: notAvailable,
		Baseline:           []string{"psiphon", "tor"},
	},
	{
		Name:               Performance,
		Title:              "Test_Performance_Fullname",
		Description:        "Dashboard_Performance_Card_Description",
		Overview:           "Dashboard_Performance_Overview_Paragraph",
		Icon:               "test_performance",
		Icon24:             "test_performance_24",
		Color:              "color_fuchsia6",
		Theme:              "Theme_App_NoActionBar_Performance",
		ThemeLight:         "Theme_App_Light_Performance",
		Animation:          "anim/performance.json",
		UnavailableResults: notAvailable,
		Baseline:           []string{"ndt", "dash", "http_header_field_manipulation", "http_invalid_request_line"},
	},
	ExperimentalDefinition(),
}

// ExperimentalDefinition returns the definition of the experimental suite.
func ExperimentalDefinition() Definition {
	return Definition{
		Name:               ExperimentalSuite,
		Title:              "Test_Experimental_Fullname",
		Description:        "Dashboard_Experimental_Card_Description",
		Overview:           "Dashboard_Experimental_Overview_Paragraph",
		Icon:               "test_experimental",
		Icon24:             "test_experimental_24",
		Color:              "color_gray7_1",
		Theme:              "Theme_App_NoActionBar_Experimental",
		ThemeLight:         "Theme_App_Light_Experimental",
		Animation:          "anim/experimental.json",
		UnavailableResults: notAvailable,
		Experimental:       true,
		Baseline:           []string{"stunreachability", "dnscheck", "echcheck"},
		LongRunning:        []string{"torsf", "vanilla_tor"},
	}
}

// DefaultRegistry returns a registry holding the built-in suites.
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(catalog...)
}
