package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// HazardFlags are the yes/no answers of a confined-space survey.
type HazardFlags struct {
	ConfinedSpace                  bool `gorm:"not null;default:false" json:"confinedSpace"`
	PermitRequired                 bool `gorm:"not null;default:false" json:"permitRequired"`
	AtmosphericHazard              bool `gorm:"not null;default:false" json:"atmosphericHazard"`
	EngulfmentHazard               bool `gorm:"not null;default:false" json:"engulfmentHazard"`
	ConfigurationHazard            bool `gorm:"not null;default:false" json:"configurationHazard"`
	OtherRecognizedHazards         bool `gorm:"not null;default:false" json:"otherRecognizedHazards"`
	PPERequired                    bool `gorm:"column:ppe_required;not null;default:false" json:"ppeRequired"`
	ForcedAirVentilationSufficient bool `gorm:"not null;default:false" json:"forcedAirVentilationSufficient"`
	DedicatedContinuousAirMonitor  bool `gorm:"not null;default:false" json:"dedicatedContinuousAirMonitor"`
	WarningSignPosted              bool `gorm:"not null;default:false" json:"warningSignPosted"`
	OtherPeopleWorkingNearSpace    bool `gorm:"not null;default:false" json:"otherPeopleWorkingNearSpace"`
	CanOthersSeeIntoSpace          bool `gorm:"not null;default:false" json:"canOthersSeeIntoSpace"`
	ContractorsEnterSpace          bool `gorm:"not null;default:false" json:"contractorsEnterSpace"`
}

// SurveyText holds the free-text answers of a survey.
type SurveyText struct {
	ConfinedSpaceNameOrID          string `gorm:"column:confined_space_name_or_id;size:255;index" json:"confinedSpaceNameOrId"`
	Building                       string `gorm:"size:255" json:"building"`
	LocationDescription            string `gorm:"type:text" json:"locationDescription"`
	ConfinedSpaceDescription       string `gorm:"type:text" json:"confinedSpaceDescription"`
	EntryRequirements              string `gorm:"type:text" json:"entryRequirements"`
	AtmosphericHazardDescription   string `gorm:"type:text" json:"atmosphericHazardDescription"`
	EngulfmentHazardDescription    string `gorm:"type:text" json:"engulfmentHazardDescription"`
	ConfigurationHazardDescription string `gorm:"type:text" json:"configurationHazardDescription"`
	OtherHazardsDescription        string `gorm:"type:text" json:"otherHazardsDescription"`
	PPEList                        string `gorm:"column:ppe_list;type:text" json:"ppeList"`
	Notes                          string `gorm:"type:text" json:"notes"`
}

type Order struct {
	ID                  uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              uuid.UUID                   `gorm:"type:uuid;not null;index" json:"userId"`
	LocationID          *uuid.UUID                  `gorm:"type:uuid;index" json:"locationId"`
	Surveyors           datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"surveyors"`
	SurveyText          `gorm:"embedded"`
	HazardFlags         `gorm:"embedded"`
	NumberOfEntryPoints int                         `gorm:"not null;default:0" json:"numberOfEntryPoints"`
	Pictures            datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"pictures"`
	DateOfSurvey        *time.Time                  `gorm:"index" json:"dateOfSurvey"`
	CreatedAt           time.Time                   `json:"createdAt"`
	UpdatedAt           time.Time                   `json:"updatedAt"`
}

// flagField binds a form/JSON name to its column and struct field.
type flagField struct {
	Name   string
	Column string
	Label  string
	Get    func(*HazardFlags) *bool
}

var flagFields = []flagField{
	{"confinedSpace", "confined_space", "Confined space", func(f *HazardFlags) *bool { return &f.ConfinedSpace }},
	{"permitRequired", "permit_required", "Permit required", func(f *HazardFlags) *bool { return &f.PermitRequired }},
	{"atmosphericHazard", "atmospheric_hazard", "Atmospheric hazard", func(f *HazardFlags) *bool { return &f.AtmosphericHazard }},
	{"engulfmentHazard", "engulfment_hazard", "Engulfment hazard", func(f *HazardFlags) *bool { return &f.EngulfmentHazard }},
	{"configurationHazard", "configuration_hazard", "Configuration hazard", func(f *HazardFlags) *bool { return &f.ConfigurationHazard }},
	{"otherRecognizedHazards", "other_recognized_hazards", "Other recognized hazards", func(f *HazardFlags) *bool { return &f.OtherRecognizedHazards }},
	{"ppeRequired", "ppe_required", "PPE required", func(f *HazardFlags) *bool { return &f.PPERequired }},
	{"forcedAirVentilationSufficient", "forced_air_ventilation_sufficient", "Forced air ventilation sufficient", func(f *HazardFlags) *bool { return &f.ForcedAirVentilationSufficient }},
	{"dedicatedContinuousAirMonitor", "dedicated_continuous_air_monitor", "Dedicated continuous air monitor", func(f *HazardFlags) *bool { return &f.DedicatedContinuousAirMonitor }},
	{"warningSignPosted", "warning_sign_posted", "Warning sign posted", func(f *HazardFlags) *bool { return &f.WarningSignPosted }},
	{"otherPeopleWorkingNearSpace", "other_people_working_near_space", "Other people working near space", func(f *HazardFlags) *bool { return &f.OtherPeopleWorkingNearSpace }},
	{"canOthersSeeIntoSpace", "can_others_see_into_space", "Can others see into space", func(f *HazardFlags) *bool { return &f.CanOthersSeeIntoSpace }},
	{"contractorsEnterSpace", "contractors_enter_space", "Contractors enter space", func(f *HazardFlags) *bool { return &f.ContractorsEnterSpace }},
}

type textField struct {
	Name   string
	Column string
	Label  string
	Get    func(*SurveyText) *string
}

var textFields = []textField{
	{"confinedSpaceNameOrId", "confined_space_name_or_id", "Confined space name or ID", func(t *SurveyText) *string { return &t.ConfinedSpaceNameOrID }},
	{"building", "building", "Building", func(t *SurveyText) *string { return &t.Building }},
	{"locationDescription", "location_description", "Location description", func(t *SurveyText) *string { return &t.LocationDescription }},
	{"confinedSpaceDescription", "confined_space_description", "Confined space description", func(t *SurveyText) *string { return &t.ConfinedSpaceDescription }},
	{"entryRequirements", "entry_requirements", "Entry requirements", func(t *SurveyText) *string { return &t.EntryRequirements }},
	{"atmosphericHazardDescription", "atmospheric_hazard_description", "Atmospheric hazard description", func(t *SurveyText) *string { return &t.AtmosphericHazardDescription }},
	{"engulfmentHazardDescription", "engulfment_hazard_description", "Engulfment hazard description", func(t *SurveyText) *string { return &t.EngulfmentHazardDescription }},
	{"configurationHazardDescription", "configuration_hazard_description", "Configuration hazard description", func(t *SurveyText) *string { return &t.ConfigurationHazardDescription }},
	{"otherHazardsDescription", "other_hazards_description", "Other hazards description", func(t *SurveyText) *string { return &t.OtherHazardsDescription }},
	{"ppeList", "ppe_list", "PPE list", func(t *SurveyText) *string { return &t.PPEList }},
	{"notes", "notes", "Notes", func(t *SurveyText) *string { return &t.Notes }},
}

// --- DTOs ---

// OrderInput is the typed form of a create or update request. Present records
// which form fields were sent, keyed by their form name.
type OrderInput struct {
	Surveyors           []string
	Text                SurveyText
	Flags               HazardFlags
	NumberOfEntryPoints int
	LocationID          *uuid.UUID
	DateOfSurvey        *time.Time
	Keep                []string
	Present             map[string]bool
}

func (in *OrderInput) Has(name string) bool { return in.Present[name] }

// SearchQuery filters orders. Flags holds exact matches keyed by column.
type SearchQuery struct {
	Text       string
	Flags      map[string]bool
	LocationID *uuid.UUID
	UserID     *uuid.UUID
	From       *time.Time
	To         *time.Time
}
