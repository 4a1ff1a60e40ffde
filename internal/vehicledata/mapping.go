package vehicledata

import (
	"fmt"
	"strconv"
	"strings"
)

func mapVehicle(raw map[string]string, vin string) Vehicle {
	v := Vehicle{
		VIN:          vin,
		Year:         parseInt(raw["ModelYear"]),
		Make:         field(raw, "Make"),
		Model:        field(raw, "Model"),
		Trim:         field(raw, "Trim"),
		Series:       field(raw, "Series"),
		BodyClass:    field(raw, "BodyClass"),
		VehicleType:  field(raw, "VehicleType"),
		Doors:        parseInt(raw["Doors"]),
		DriveType:    field(raw, "DriveType"),
		GVWR:         field(raw, "GVWR"),
		Manufacturer: field(raw, "Manufacturer"),
		Engine: Engine{
			Cylinders:     parseInt(raw["EngineCylinders"]),
			DisplacementL: parseFloat(raw["DisplacementL"]),
			Horsepower:    parseFloat(raw["EngineHP"]),
			FuelType:      field(raw, "FuelTypePrimary"),
			Configuration: field(raw, "EngineConfiguration"),
			Turbo:         field(raw, "Turbo"),
		},
		Transmission: Transmission{
			Style:  field(raw, "TransmissionStyle"),
			Speeds: parseInt(raw["TransmissionSpeeds"]),
		},
		Plant: Plant{
			City:    field(raw, "PlantCity"),
			State:   field(raw, "PlantState"),
			Country: field(raw, "PlantCountry"),
		},
		Safety: Safety{
			ABS:            field(raw, "ABS"),
			ESC:            field(raw, "ESC"),
			TPMS:           field(raw, "TPMS"),
			AirbagsFront:   field(raw, "AirBagLocFront"),
			AirbagsSide:    field(raw, "AirBagLocSide"),
			AirbagsCurtain: field(raw, "AirBagLocCurtain"),
		},
	}

	// vPIC reports "0" for a clean decode; anything else is advisory
	if code := strings.TrimSpace(raw["ErrorCode"]); code != "" && code != "0" {
		v.ErrorCode = code
		v.Warning = field(raw, "ErrorText")
	}
	return v
}

func mapRecall(raw map[string]interface{}) Recall {
	return Recall{
		CampaignNumber: anyString(raw["NHTSACampaignNumber"]),
		Manufacturer:   anyString(raw["Manufacturer"]),
		ReportedDate:   anyString(raw["ReportReceivedDate"]),
		Component:      anyString(raw["Component"]),
		Summary:        anyString(raw["Summary"]),
		Consequence:    anyString(raw["Consequence"]),
		Remedy:         anyString(raw["Remedy"]),
		Notes:          anyString(raw["Notes"]),
	}
}

func field(raw map[string]string, key string) string {
	v := strings.TrimSpace(raw[key])
	if strings.EqualFold(v, "Not Applicable") {
		return ""
	}
	return v
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		n = int(f)
	}
	return &n
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func anyString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
