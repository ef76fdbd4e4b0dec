package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ListKind string

const (
	KindSale  ListKind = "sale"
	KindLease ListKind = "lease"
	KindBoth  ListKind = "both"
)

// Every imported listing is published directly; the import pipeline never
// creates drafts.
const StatusPublished = "published"

// ListingImage is one photo attached to a listing, in display order.
type ListingImage struct {
	URL      string `json:"url" db:"url"`
	Position int    `json:"position" db:"position"`
}

// Listing is the internal representation produced by the normalizer.
// Required address fields are plain strings (empty permitted, never null);
// everything optional is a pointer or a slice that defaults to empty.
type Listing struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`
	Status  string    `json:"status" db:"status"`

	// Listing information
	ExternalID string    `json:"mls_number" db:"mls_number"`
	ListKind   ListKind  `json:"list_kind" db:"list_kind"`
	ListPrice  float64   `json:"list_price" db:"list_price"`
	ListDate   time.Time `json:"list_date" db:"list_date"`

	// Address
	StreetNumber  string  `json:"street_number" db:"street_number"`
	StreetDir     *string `json:"street_dir" db:"street_dir"`
	StreetName    string  `json:"street_name" db:"street_name"`
	StreetSuffix  *string `json:"street_suffix" db:"street_suffix"`
	UnitNumber    *string `json:"unit_number" db:"unit_number"`
	City          string  `json:"city" db:"city"`
	State         string  `json:"state" db:"state"`
	PostalCode    string  `json:"postal_code" db:"postal_code"`
	PostalCodeExt *string `json:"postal_code_ext" db:"postal_code_ext"`
	County        *string `json:"county" db:"county"`
	Subdivision   *string `json:"subdivision" db:"subdivision"`

	// Legal / location
	LegalDescription *string `json:"legal_description" db:"legal_description"`
	TaxID            *string `json:"tax_id" db:"tax_id"`
	CensusTract      *string `json:"census_tract" db:"census_tract"`

	PropertyTypes []string `json:"property_types" db:"property_types"`

	// Building
	BuildingSqFt    *int    `json:"building_sqft" db:"building_sqft"`
	SqFtSource      *string `json:"sqft_source" db:"sqft_source"`
	YearBuilt       *string `json:"year_built" db:"year_built"`
	YearBuiltSource *string `json:"year_built_source" db:"year_built_source"`
	Stories         *string `json:"stories" db:"stories"`
	NewConstruction bool    `json:"new_construction" db:"new_construction"`
	BuilderName     *string `json:"builder_name" db:"builder_name"`

	// Lot
	LotSqFt       *float64 `json:"lot_sqft" db:"lot_sqft"`
	LotSizeSource *string  `json:"lot_size_source" db:"lot_size_source"`
	Acres         *string  `json:"acres" db:"acres"`
	LotDimensions *string  `json:"lot_dimensions" db:"lot_dimensions"`

	// Rooms
	Beds      *int `json:"beds" db:"beds"`
	BathsFull *int `json:"baths_full" db:"baths_full"`
	BathsHalf *int `json:"baths_half" db:"baths_half"`

	// Parking
	Garage           *string `json:"garage" db:"garage"`
	GarageDimensions *string `json:"garage_dimensions" db:"garage_dimensions"`
	Carport          *string `json:"carport" db:"carport"`

	// Schools
	ElementarySchool *string `json:"elementary_school" db:"elementary_school"`
	MiddleSchool     *string `json:"middle_school" db:"middle_school"`
	HighSchool       *string `json:"high_school" db:"high_school"`
	SchoolDistrict   *string `json:"school_district" db:"school_district"`

	// Tax
	TaxYear    *string  `json:"tax_year" db:"tax_year"`
	TaxAnnual  *float64 `json:"taxes" db:"taxes"`
	TaxRate    *float64 `json:"total_tax_rate" db:"total_tax_rate"`
	Exemptions *string  `json:"exemptions" db:"exemptions"`

	// HOA
	MandatoryHOA           string   `json:"mandatory_hoa" db:"mandatory_hoa"`
	MaintenanceFee         string   `json:"maintenance_fee" db:"maintenance_fee"`
	MaintenanceFeeAmount   *float64 `json:"maintenance_fee_amount" db:"maintenance_fee_amount"`
	MaintenanceFeeSchedule *string  `json:"maintenance_fee_schedule" db:"maintenance_fee_schedule"`
	MaintenanceFeeIncludes []string `json:"maintenance_fee_includes" db:"maintenance_fee_includes"`

	// Feature tag lists; always non-nil, empty when the feed has no data
	Restrictions          []string `json:"restrictions" db:"restrictions"`
	WaterfrontFeatures    []string `json:"waterfront_features" db:"waterfront_features"`
	LotDescription        []string `json:"lot_description" db:"lot_description"`
	InteriorFeatures      []string `json:"interior_features" db:"interior_features"`
	Flooring              []string `json:"flooring" db:"flooring"`
	ConstructionMaterials []string `json:"construction_materials" db:"construction_materials"`
	RoofDescription       []string `json:"roof_description" db:"roof_description"`
	FoundationDescription []string `json:"foundation_description" db:"foundation_description"`
	Heating               []string `json:"heating" db:"heating"`
	Cooling               []string `json:"cooling" db:"cooling"`
	WaterSewer            []string `json:"water_sewer" db:"water_sewer"`
	StreetSurface         []string `json:"street_surface" db:"street_surface"`

	// Appliances
	Microwave  *string `json:"microwave" db:"microwave"`
	Dishwasher *string `json:"dishwasher" db:"dishwasher"`
	Disposal   *string `json:"disposal" db:"disposal"`

	// Fireplace
	FireplaceCount    *string  `json:"fireplace_count" db:"fireplace_count"`
	FireplaceFeatures []string `json:"fireplace_features" db:"fireplace_features"`

	KitchenFeatures []string `json:"kitchen_features" db:"kitchen_features"`
	RoomTypes       []string `json:"room_types" db:"room_types"`

	Disclosures    []string `json:"disclosures" db:"disclosures"`
	Exclusions     []string `json:"exclusions" db:"exclusions"`
	FinancingTerms []string `json:"financing_terms" db:"financing_terms"`

	Remarks    *string `json:"remarks" db:"remarks"`
	Directions *string `json:"directions" db:"directions"`

	// Agent
	ListAgent           *string `json:"list_agent" db:"list_agent"`
	AppointmentPhone    *string `json:"appointment_phone" db:"appointment_phone"`
	AgentAlternatePhone *string `json:"agent_alternate_phone" db:"agent_alternate_phone"`

	VirtualTour1 *string `json:"virtual_tour_1" db:"virtual_tour_1"`
	VirtualTour2 *string `json:"virtual_tour_2" db:"virtual_tour_2"`

	Images []ListingImage `json:"images" db:"images"`

	// Market area
	MasterPlanned     bool    `json:"master_planned" db:"master_planned"`
	MasterPlannedName *string `json:"master_planned_name" db:"master_planned_name"`
	MarketArea        *string `json:"market_area" db:"market_area"`
	Area              *string `json:"area" db:"area"`
	PoolPrivate       string  `json:"pool_private" db:"pool_private"`
	PoolArea          string  `json:"pool_area" db:"pool_area"`
	GolfCourse        *string `json:"golf_course" db:"golf_course"`
	UtilityDistrict   string  `json:"utility_district" db:"utility_district"`

	LotValue     float64 `json:"lot_value" db:"lot_value"`
	AlsoForLease bool    `json:"also_for_lease" db:"also_for_lease"`

	Styles              []string `json:"styles" db:"styles"`
	EnergyFeatures      []string `json:"energy_features" db:"energy_features"`
	GreenCertifications []string `json:"green_certifications" db:"green_certifications"`

	RawData json.RawMessage `json:"raw_data" db:"raw_data"`
}

// Owner is the account imported listings are attributed to. Accounts are
// managed by the marketplace backend; the importer only reads them.
type Owner struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Email string    `json:"email" db:"email"`
}
