// Package normalize maps one loosely-typed feed record into the internal
// listing shape. Everything here is pure: sparse input produces defaults,
// and the only error is a record with no usable identity.
package normalize

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"har_importer/models"
)

// ErrNoIdentity marks a record missing both ListingId and ListingKey.
// Such a record cannot be deduplicated and must not be imported.
var ErrNoIdentity = errors.New("record has neither ListingId nor ListingKey")

const leasePropertyType = "Residential Lease"

// Normalize converts a feed record into a Listing attributed to ownerID.
// The listing ID is left unset; the storage layer assigns it on insert.
func Normalize(rec *models.FeedListing, ownerID uuid.UUID) (*models.Listing, error) {
	externalID := string(rec.ListingID)
	if externalID == "" {
		externalID = string(rec.ListingKey)
	}
	if externalID == "" {
		return nil, ErrNoIdentity
	}

	l := &models.Listing{
		OwnerID: ownerID,
		Status:  models.StatusPublished,

		ExternalID: externalID,
		ListKind:   listKind(rec),
		ListPrice:  nonNegative(rec.ListPrice.Or(0)),
		ListDate:   listDate(rec.ListingContractDate),

		StreetNumber:  orDefault(string(rec.StreetNumber), "0"),
		StreetDir:     strPtr(rec.StreetDirPrefix),
		StreetName:    rec.StreetName,
		StreetSuffix:  strPtr(rec.StreetSuffix),
		UnitNumber:    strPtr(string(rec.UnitNumber)),
		City:          rec.City,
		State:         orDefault(rec.StateOrProvince, "TX"),
		PostalCode:    string(rec.PostalCode),
		PostalCodeExt: strPtr(string(rec.PostalCodePlus4)),
		County:        strPtr(rec.CountyOrParish),
		Subdivision:   strPtr(rec.SubdivisionName),

		LegalDescription: strPtr(rec.TaxLegalDescription),
		TaxID:            strPtr(string(rec.ParcelNumber)),
		CensusTract:      strPtr(string(rec.HARCensusTract)),

		PropertyTypes: propertyTypes(rec),

		BuildingSqFt:    rec.LivingArea.Ptr(),
		SqFtSource:      strPtr(rec.LivingAreaSource),
		YearBuilt:       intStrPtr(rec.YearBuilt),
		YearBuiltSource: strPtr(rec.YearBuiltSource),
		Stories:         intStrPtr(rec.StoriesTotal),
		NewConstruction: bool(rec.NewConstructionYN),
		BuilderName:     strPtr(rec.BuilderName),

		LotSqFt:       rec.LotSizeSquareFeet.Ptr(),
		LotSizeSource: strPtr(rec.LotSizeSource),
		Acres:         floatStrPtr(rec.LotSizeAcres),
		LotDimensions: strPtr(rec.LotSizeDimensions),

		Beds:      rec.BedroomsTotal.Ptr(),
		BathsFull: rec.BathroomsFull.Ptr(),
		BathsHalf: rec.BathroomsHalf.Ptr(),

		Garage:           floatStrPtr(rec.GarageSpaces),
		GarageDimensions: strPtr(rec.HARGarageDimension),
		Carport:          floatStrPtr(rec.CarportSpaces),

		ElementarySchool: strPtr(rec.ElementarySchool),
		MiddleSchool:     strPtr(rec.MiddleOrJuniorSchool),
		HighSchool:       strPtr(rec.HighSchool),
		SchoolDistrict:   strPtr(rec.HighSchoolDistrict),

		TaxYear:    intStrPtr(rec.TaxYear),
		TaxAnnual:  rec.TaxAnnualAmount.Ptr(),
		TaxRate:    rec.HARTaxRate.Ptr(),
		Exemptions: joinedPtr(rec.TaxExemptions, ", "),

		MandatoryHOA:           yesNo(bool(rec.AssociationYN)),
		MaintenanceFee:         yesNo(rec.AssociationFee.Set() && rec.AssociationFee.Or(0) > 0),
		MaintenanceFeeAmount:   rec.AssociationFee.Ptr(),
		MaintenanceFeeSchedule: strPtr(rec.AssociationFeeFrequency),
		MaintenanceFeeIncludes: tags(rec.AssociationFeeIncludes),

		Restrictions:          tags(rec.HARRestrictions),
		WaterfrontFeatures:    tags(rec.WaterfrontFeatures),
		LotDescription:        tags(rec.LotFeatures),
		InteriorFeatures:      tags(rec.InteriorFeatures),
		Flooring:              tags(rec.Flooring),
		ConstructionMaterials: tags(rec.ConstructionMaterials),
		RoofDescription:       tags(rec.Roof),
		FoundationDescription: tags(rec.FoundationDetails),
		Heating:               tags(rec.Heating),
		Cooling:               tags(rec.Cooling),
		WaterSewer:            waterSewer(rec),
		StreetSurface:         tags(rec.RoadSurfaceType),

		Microwave:  applianceFlag(rec.Appliances, "Microwave"),
		Dishwasher: applianceFlag(rec.Appliances, "Dishwasher"),
		Disposal:   applianceFlag(rec.Appliances, "Disposal"),

		FireplaceCount:    intStrPtr(rec.FireplacesTotal),
		FireplaceFeatures: tags(rec.FireplaceFeatures),

		KitchenFeatures: tags(rec.RoomKitchenFeatures),
		RoomTypes:       tags(rec.RoomType),

		Disclosures:    tags(rec.Disclosures),
		Exclusions:     exclusions(rec.Exclusions),
		FinancingTerms: tags(rec.ListingTerms),

		Remarks:    strPtr(rec.PublicRemarks),
		Directions: strPtr(rec.Directions),

		ListAgent:           strPtr(rec.ListAgentFullName),
		AppointmentPhone:    strPtr(rec.ListAgentPreferredPhone),
		AgentAlternatePhone: strPtr(rec.HARPhoneAlt),

		VirtualTour1: strPtr(rec.VirtualTourURLUnbranded),
		VirtualTour2: strPtr(rec.VirtualTourURLBranded),

		Images: images(rec.Media),

		MasterPlanned:     bool(rec.HARMasterPlannedCommunityYN),
		MasterPlannedName: strPtr(rec.HARMasterPlannedCommunity),
		MarketArea:        strPtr(rec.HARGeoMarketArea),
		Area:              strPtr(rec.MLSAreaMajor),
		PoolPrivate:       yesNo(bool(rec.PoolPrivateYN)),
		PoolArea:          yesNo(bool(rec.HARPoolArea)),
		GolfCourse:        strPtr(rec.HARGolfCourse),
		UtilityDistrict:   yesNo(bool(rec.HARUtilityDistrict)),

		LotValue:     nonNegative(rec.HARLotValue.Or(0)),
		AlsoForLease: bool(rec.LeaseConsideredYN),

		Styles:              tags(rec.ArchitecturalStyle),
		EnergyFeatures:      tags(rec.GreenEnergyEfficient),
		GreenCertifications: tags(rec.GreenBuildingVerificationType),

		RawData: rec.Raw,
	}

	return l, nil
}

// listKind is a priority-ordered decision: a lease-only property type wins
// outright, then the lease-eligibility flag promotes a sale to both.
func listKind(rec *models.FeedListing) models.ListKind {
	if rec.PropertyType == leasePropertyType {
		return models.KindLease
	}
	if rec.LeaseConsideredYN {
		return models.KindBoth
	}
	return models.KindSale
}

// propertyTypes is the ordered union primary type, subtype, current use.
// Duplicates across the segments are kept as-is.
func propertyTypes(rec *models.FeedListing) []string {
	types := make([]string, 0, 2+len(rec.CurrentUse))
	if rec.PropertyType != "" {
		types = append(types, rec.PropertyType)
	}
	if rec.PropertySubType != "" {
		types = append(types, rec.PropertySubType)
	}
	types = append(types, rec.CurrentUse...)
	if len(types) == 0 {
		return []string{"Residential"}
	}
	return types
}

func waterSewer(rec *models.FeedListing) []string {
	out := make([]string, 0, len(rec.WaterSource)+len(rec.Sewer))
	out = append(out, rec.WaterSource...)
	out = append(out, rec.Sewer...)
	return out
}

// images keeps photo-category media with a URL, ordered by the feed's
// declared display order; entries without an order sort as 0.
func images(media []models.FeedMedia) []models.ListingImage {
	photos := make([]models.FeedMedia, 0, len(media))
	for _, m := range media {
		if m.MediaCategory == "Photo" && m.MediaURL != "" {
			photos = append(photos, m)
		}
	}
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].Order.Or(0) < photos[j].Order.Or(0)
	})

	out := make([]models.ListingImage, 0, len(photos))
	for i, m := range photos {
		out = append(out, models.ListingImage{URL: m.MediaURL, Position: i})
	}
	return out
}

func listDate(raw string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func exclusions(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return []string{raw}
}

func applianceFlag(appliances []string, name string) *string {
	for _, a := range appliances {
		if a == name {
			yes := "Yes"
			return &yes
		}
	}
	return nil
}

func tags(fs models.FlexStrings) []string {
	if len(fs) == 0 {
		return []string{}
	}
	return append([]string(nil), fs...)
}

func joinedPtr(fs models.FlexStrings, sep string) *string {
	if len(fs) == 0 {
		return nil
	}
	s := strings.Join(fs, sep)
	return &s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intStrPtr(v models.FlexInt) *string {
	if !v.Set() {
		return nil
	}
	s := strconv.Itoa(v.Or(0))
	return &s
}

func floatStrPtr(v models.FlexFloat) *string {
	if !v.Set() {
		return nil
	}
	s := strconv.FormatFloat(v.Or(0), 'f', -1, 64)
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
