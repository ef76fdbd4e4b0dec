package models

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// FlexString accepts string or number JSON; null decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

// FlexStrings accepts a JSON array of strings or a bare scalar, which
// decodes as a one-element slice. Null decodes to nil.
type FlexStrings []string

func (s *FlexStrings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, string(it))
		}
		*s = out
		return nil
	}
	var single FlexString
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*s = []string{string(single)}
	return nil
}

// FlexFloat decodes a number, a numeric string, or null. Values that
// cannot be read as a number decode to the unset state rather than
// failing, so one junk field never rejects a whole record.
type FlexFloat struct {
	value float64
	set   bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	f.value, f.set = 0, false
	raw := string(b)
	if raw == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil
		}
		f.value, f.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.value, f.set = v, true
	return nil
}

func (f FlexFloat) Ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func (f FlexFloat) Or(def float64) float64 {
	if !f.set {
		return def
	}
	return f.value
}

func (f FlexFloat) Set() bool { return f.set }

// FlexInt behaves like FlexFloat but truncates to an integer.
type FlexInt struct {
	value int
	set   bool
}

func (i *FlexInt) UnmarshalJSON(b []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	i.value, i.set = int(f.value), f.set
	return nil
}

func (i FlexInt) Ptr() *int {
	if !i.set {
		return nil
	}
	v := i.value
	return &v
}

func (i FlexInt) Or(def int) int {
	if !i.set {
		return def
	}
	return i.value
}

func (i FlexInt) Set() bool { return i.set }

// FlexBool accepts true/false, "true"/"false", or a 0/1 number.
// Anything else, including null, decodes to false.
type FlexBool bool

func (fb *FlexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(b), `"`) {
	case "true", "Y", "1":
		*fb = true
	default:
		*fb = false
	}
	return nil
}

// FeedMedia is one entry in the upstream Media array.
type FeedMedia struct {
	MediaURL      string     `json:"MediaURL"`
	MediaCategory string     `json:"MediaCategory"`
	Order         FlexInt    `json:"Order"`
	ShortDesc     FlexString `json:"ShortDescription"`
}

// FeedListing is the typed envelope over one upstream OData record. Field
// presence and types vary per record, so scalars that sometimes arrive as
// strings use the Flex decoders, and keys the envelope does not model are
// preserved in Extra.
type FeedListing struct {
	ListingKey FlexString `json:"ListingKey"`
	ListingID  FlexString `json:"ListingId"`

	ListPrice           FlexFloat  `json:"ListPrice"`
	ListingContractDate string     `json:"ListingContractDate"`
	PropertyType        string     `json:"PropertyType"`
	PropertySubType     string     `json:"PropertySubType"`
	CurrentUse          FlexStrings `json:"CurrentUse"`
	StandardStatus      string     `json:"StandardStatus"`
	MlsStatus           string     `json:"MlsStatus"`
	LeaseConsideredYN   FlexBool   `json:"LeaseConsideredYN"`

	StreetNumber    FlexString `json:"StreetNumber"`
	StreetDirPrefix string     `json:"StreetDirPrefix"`
	StreetName      string     `json:"StreetName"`
	StreetSuffix    string     `json:"StreetSuffix"`
	StreetDirSuffix string     `json:"StreetDirSuffix"`
	UnitNumber      FlexString `json:"UnitNumber"`
	City            string     `json:"City"`
	StateOrProvince string     `json:"StateOrProvince"`
	PostalCode      FlexString `json:"PostalCode"`
	PostalCodePlus4 FlexString `json:"PostalCodePlus4"`
	CountyOrParish  string     `json:"CountyOrParish"`
	SubdivisionName string     `json:"SubdivisionName"`
	Latitude        FlexFloat  `json:"Latitude"`
	Longitude       FlexFloat  `json:"Longitude"`

	TaxLegalDescription string     `json:"TaxLegalDescription"`
	ParcelNumber        FlexString `json:"ParcelNumber"`
	TaxAnnualAmount     FlexFloat  `json:"TaxAnnualAmount"`
	TaxYear             FlexInt    `json:"TaxYear"`
	TaxExemptions       FlexStrings `json:"TaxExemptions"`

	BedroomsTotal         FlexInt   `json:"BedroomsTotal"`
	BathroomsTotalDecimal FlexFloat `json:"BathroomsTotalDecimal"`
	BathroomsFull         FlexInt   `json:"BathroomsFull"`
	BathroomsHalf         FlexInt   `json:"BathroomsHalf"`

	LivingArea        FlexInt    `json:"LivingArea"`
	LivingAreaSource  string     `json:"LivingAreaSource"`
	YearBuilt         FlexInt    `json:"YearBuilt"`
	YearBuiltSource   string     `json:"YearBuiltSource"`
	StoriesTotal      FlexInt    `json:"StoriesTotal"`
	NewConstructionYN FlexBool   `json:"NewConstructionYN"`
	BuilderName       string     `json:"BuilderName"`

	LotSizeAcres      FlexFloat `json:"LotSizeAcres"`
	LotSizeSquareFeet FlexFloat `json:"LotSizeSquareFeet"`
	LotSizeDimensions string    `json:"LotSizeDimensions"`
	LotSizeSource     string    `json:"LotSizeSource"`

	GarageSpaces  FlexFloat `json:"GarageSpaces"`
	CarportSpaces FlexFloat `json:"CarportSpaces"`

	ElementarySchool     string `json:"ElementarySchool"`
	MiddleOrJuniorSchool string `json:"MiddleOrJuniorSchool"`
	HighSchool           string `json:"HighSchool"`
	HighSchoolDistrict   string `json:"HighSchoolDistrict"`

	AssociationYN           FlexBool    `json:"AssociationYN"`
	AssociationFee          FlexFloat   `json:"AssociationFee"`
	AssociationFeeFrequency string      `json:"AssociationFeeFrequency"`
	AssociationFeeIncludes  FlexStrings `json:"AssociationFeeIncludes"`

	WaterfrontFeatures    FlexStrings `json:"WaterfrontFeatures"`
	LotFeatures           FlexStrings `json:"LotFeatures"`
	InteriorFeatures      FlexStrings `json:"InteriorFeatures"`
	Flooring              FlexStrings `json:"Flooring"`
	ConstructionMaterials FlexStrings `json:"ConstructionMaterials"`
	Roof                  FlexStrings `json:"Roof"`
	FoundationDetails     FlexStrings `json:"FoundationDetails"`
	Heating               FlexStrings `json:"Heating"`
	Cooling               FlexStrings `json:"Cooling"`
	RoadSurfaceType       FlexStrings `json:"RoadSurfaceType"`
	WaterSource           FlexStrings `json:"WaterSource"`
	Sewer                 FlexStrings `json:"Sewer"`
	Appliances            FlexStrings `json:"Appliances"`

	FireplacesTotal     FlexInt     `json:"FireplacesTotal"`
	FireplaceFeatures   FlexStrings `json:"FireplaceFeatures"`
	RoomKitchenFeatures FlexStrings `json:"RoomKitchenFeatures"`
	RoomType            FlexStrings `json:"RoomType"`

	Disclosures  FlexStrings `json:"Disclosures"`
	Exclusions   string      `json:"Exclusions"`
	ListingTerms FlexStrings `json:"ListingTerms"`

	PublicRemarks string `json:"PublicRemarks"`
	Directions    string `json:"Directions"`

	ListAgentFullName       string `json:"ListAgentFullName"`
	ListAgentEmail          string `json:"ListAgentEmail"`
	ListAgentPreferredPhone string `json:"ListAgentPreferredPhone"`
	ListOfficeName          string `json:"ListOfficeName"`
	ListOfficePhone         string `json:"ListOfficePhone"`

	VirtualTourURLUnbranded string `json:"VirtualTourURLUnbranded"`
	VirtualTourURLBranded   string `json:"VirtualTourURLBranded"`

	ArchitecturalStyle            FlexStrings `json:"ArchitecturalStyle"`
	GreenEnergyEfficient          FlexStrings `json:"GreenEnergyEfficient"`
	GreenBuildingVerificationType FlexStrings `json:"GreenBuildingVerificationType"`

	PoolPrivateYN FlexBool `json:"PoolPrivateYN"`

	Media []FeedMedia `json:"Media"`

	// HAR vendor extensions
	HARCensusTract              FlexString  `json:"HAR_CensusTract"`
	HARGarageDimension          string      `json:"HAR_GarageDimension"`
	HARTaxRate                  FlexFloat   `json:"HAR_TaxRate"`
	HARRestrictions             FlexStrings `json:"HAR_Restrictions"`
	HARPhoneAlt                 string      `json:"HAR_PhoneAlt"`
	HARMasterPlannedCommunityYN FlexBool    `json:"HAR_MasterPlannedCommunityYN"`
	HARMasterPlannedCommunity   string      `json:"HAR_MasterPlannedCommunity"`
	HARGeoMarketArea            string      `json:"HAR_GeoMarketArea"`
	MLSAreaMajor                string      `json:"MLSAreaMajor"`
	HARPoolArea                 FlexBool    `json:"HAR_PoolArea"`
	HARGolfCourse               string      `json:"HAR_GolfCourse"`
	HARUtilityDistrict          FlexBool    `json:"HAR_UtilityDistrict"`
	HARLotValue                 FlexFloat   `json:"HAR_LotValue"`

	// Extra holds keys the envelope does not model. Raw is the record as
	// received, kept for the raw_data column.
	Extra map[string]json.RawMessage `json:"-"`
	Raw   json.RawMessage            `json:"-"`
}

type feedListingAlias FeedListing

func (l *FeedListing) UnmarshalJSON(b []byte) error {
	var alias feedListingAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for key := range knownFeedKeys() {
		delete(all, key)
	}
	if len(all) == 0 {
		all = nil
	}
	*l = FeedListing(alias)
	l.Extra = all
	l.Raw = append(json.RawMessage(nil), b...)
	return nil
}

var (
	feedKeysOnce sync.Once
	feedKeys     map[string]struct{}
)

// knownFeedKeys collects the json tags of FeedListing so Extra only keeps
// genuinely unrecognized upstream keys.
func knownFeedKeys() map[string]struct{} {
	feedKeysOnce.Do(func() {
		feedKeys = make(map[string]struct{})
		t := reflect.TypeOf(FeedListing{})
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")
			feedKeys[name] = struct{}{}
		}
	})
	return feedKeys
}
