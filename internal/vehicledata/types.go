package vehicledata

// Vehicle is the normalized view of a vPIC decode result.
type Vehicle struct {
	VIN          string       `json:"vin"`
	Year         *int         `json:"year"`
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	Trim         string       `json:"trim,omitempty"`
	Series       string       `json:"series,omitempty"`
	BodyClass    string       `json:"bodyClass,omitempty"`
	VehicleType  string       `json:"vehicleType,omitempty"`
	Doors        *int         `json:"doors,omitempty"`
	DriveType    string       `json:"driveType,omitempty"`
	GVWR         string       `json:"gvwr,omitempty"`
	Manufacturer string       `json:"manufacturer,omitempty"`
	Engine       Engine       `json:"engine"`
	Transmission Transmission `json:"transmission"`
	Plant        Plant        `json:"plant"`
	Safety       Safety       `json:"safety"`
	// Warning carries the upstream error text when the decode was only partially successful.
	Warning   string `json:"warning,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type Engine struct {
	Cylinders     *int     `json:"cylinders,omitempty"`
	DisplacementL *float64 `json:"displacementL,omitempty"`
	Horsepower    *float64 `json:"horsepower,omitempty"`
	FuelType      string   `json:"fuelType,omitempty"`
	Configuration string   `json:"configuration,omitempty"`
	Turbo         string   `json:"turbo,omitempty"`
}

type Transmission struct {
	Style  string `json:"style,omitempty"`
	Speeds *int   `json:"speeds,omitempty"`
}

type Plant struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

type Safety struct {
	ABS            string `json:"abs,omitempty"`
	ESC            string `json:"esc,omitempty"`
	TPMS           string `json:"tpms,omitempty"`
	AirbagsFront   string `json:"airbagsFront,omitempty"`
	AirbagsSide    string `json:"airbagsSide,omitempty"`
	AirbagsCurtain string `json:"airbagsCurtain,omitempty"`
}

// BatchResult is the outcome of a batch decode.
type BatchResult struct {
	Vehicles []Vehicle `json:"results"`
	Invalid  []string  `json:"invalid"`
	Count    int       `json:"count"`
}

// Recall is one safety recall campaign.
type Recall struct {
	CampaignNumber string `json:"campaignNumber"`
	Manufacturer   string `json:"manufacturer"`
	ReportedDate   string `json:"reportedDate"`
	Component      string `json:"component"`
	Summary        string `json:"summary"`
	Consequence    string `json:"consequence"`
	Remedy         string `json:"remedy"`
	Notes          string `json:"notes"`
}

// RecallQuery selects recalls either by VIN or by make, model and year.
type RecallQuery struct {
	VIN   string
	Make  string
	Model string
	Year  string
}

// RecallResult lists the recalls for one vehicle.
type RecallResult struct {
	Make           string   `json:"make"`
	Model          string   `json:"model"`
	Year           string   `json:"year"`
	VIN            string   `json:"vin,omitempty"`
	Recalls        []Recall `json:"recalls"`
	Count          int      `json:"count"`
	HasOpenRecalls bool     `json:"hasOpenRecalls"`
}
