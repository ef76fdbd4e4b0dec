package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"har_importer/models"
)

// ErrDuplicateListing is returned when an insert loses the race against a
// concurrent import of the same external id. The unique index on
// mls_number is the authoritative dedup guard; callers treat this as a
// skip, not a failure.
var ErrDuplicateListing = errors.New("listing already exists")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate creates the import-side tables idempotently. The users table
// belongs to the marketplace backend and is only read here.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL,
			status TEXT NOT NULL,
			mls_number TEXT NOT NULL,
			list_kind TEXT NOT NULL,
			list_price NUMERIC NOT NULL DEFAULT 0,
			list_date TIMESTAMPTZ NOT NULL,
			street_number TEXT NOT NULL DEFAULT '',
			street_dir TEXT,
			street_name TEXT NOT NULL DEFAULT '',
			street_suffix TEXT,
			unit_number TEXT,
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			postal_code_ext TEXT,
			county TEXT,
			subdivision TEXT,
			legal_description TEXT,
			tax_id TEXT,
			census_tract TEXT,
			property_types TEXT[] NOT NULL DEFAULT '{}',
			building_sqft INTEGER,
			sqft_source TEXT,
			year_built TEXT,
			year_built_source TEXT,
			stories TEXT,
			new_construction BOOLEAN NOT NULL DEFAULT FALSE,
			builder_name TEXT,
			lot_sqft NUMERIC,
			lot_size_source TEXT,
			acres TEXT,
			lot_dimensions TEXT,
			beds INTEGER,
			baths_full INTEGER,
			baths_half INTEGER,
			garage TEXT,
			garage_dimensions TEXT,
			carport TEXT,
			elementary_school TEXT,
			middle_school TEXT,
			high_school TEXT,
			school_district TEXT,
			tax_year TEXT,
			taxes NUMERIC,
			total_tax_rate NUMERIC,
			exemptions TEXT,
			mandatory_hoa TEXT NOT NULL DEFAULT 'No',
			maintenance_fee TEXT NOT NULL DEFAULT 'No',
			maintenance_fee_amount NUMERIC,
			maintenance_fee_schedule TEXT,
			maintenance_fee_includes TEXT[] NOT NULL DEFAULT '{}',
			restrictions TEXT[] NOT NULL DEFAULT '{}',
			waterfront_features TEXT[] NOT NULL DEFAULT '{}',
			lot_description TEXT[] NOT NULL DEFAULT '{}',
			interior_features TEXT[] NOT NULL DEFAULT '{}',
			flooring TEXT[] NOT NULL DEFAULT '{}',
			construction_materials TEXT[] NOT NULL DEFAULT '{}',
			roof_description TEXT[] NOT NULL DEFAULT '{}',
			foundation_description TEXT[] NOT NULL DEFAULT '{}',
			heating TEXT[] NOT NULL DEFAULT '{}',
			cooling TEXT[] NOT NULL DEFAULT '{}',
			water_sewer TEXT[] NOT NULL DEFAULT '{}',
			street_surface TEXT[] NOT NULL DEFAULT '{}',
			microwave TEXT,
			dishwasher TEXT,
			disposal TEXT,
			fireplace_count TEXT,
			fireplace_features TEXT[] NOT NULL DEFAULT '{}',
			kitchen_features TEXT[] NOT NULL DEFAULT '{}',
			room_types TEXT[] NOT NULL DEFAULT '{}',
			disclosures TEXT[] NOT NULL DEFAULT '{}',
			exclusions TEXT[] NOT NULL DEFAULT '{}',
			financing_terms TEXT[] NOT NULL DEFAULT '{}',
			remarks TEXT,
			directions TEXT,
			list_agent TEXT,
			appointment_phone TEXT,
			agent_alternate_phone TEXT,
			virtual_tour_1 TEXT,
			virtual_tour_2 TEXT,
			master_planned BOOLEAN NOT NULL DEFAULT FALSE,
			master_planned_name TEXT,
			market_area TEXT,
			area TEXT,
			pool_private TEXT NOT NULL DEFAULT 'No',
			pool_area TEXT NOT NULL DEFAULT 'No',
			golf_course TEXT,
			utility_district TEXT NOT NULL DEFAULT 'No',
			lot_value NUMERIC NOT NULL DEFAULT 0,
			also_for_lease BOOLEAN NOT NULL DEFAULT FALSE,
			styles TEXT[] NOT NULL DEFAULT '{}',
			energy_features TEXT[] NOT NULL DEFAULT '{}',
			green_certifications TEXT[] NOT NULL DEFAULT '{}',
			raw_data JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_properties_mls_number ON properties(mls_number);`,
		`CREATE TABLE IF NOT EXISTS property_images (
			id UUID PRIMARY KEY,
			property_id UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			s3_key TEXT,
			content_hash TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_property_images_property ON property_images(property_id);`,
		`CREATE INDEX IF NOT EXISTS idx_property_images_status ON property_images(status);`,
	}

	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetOwner looks up the account imported listings are attributed to.
// Returns nil without error when the account does not exist.
func (s *PostgresStore) GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error) {
	var o models.Owner
	err := s.pool.QueryRow(ctx, `SELECT id, email FROM users WHERE id = $1`, id).Scan(&o.ID, &o.Email)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListingExists is the dedup gate: a point lookup on the unique external
// id column. Advisory only; the unique index is what actually prevents
// double-imports under concurrent runs.
func (s *PostgresStore) ListingExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM properties WHERE mls_number = $1)`, externalID,
	).Scan(&exists)
	return exists, err
}

// CreateListing inserts a listing and its image rows in one transaction.
// A unique violation on mls_number surfaces as ErrDuplicateListing.
func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO properties (
			id, owner_id, status, mls_number, list_kind, list_price, list_date,
			street_number, street_dir, street_name, street_suffix, unit_number,
			city, state, postal_code, postal_code_ext, county, subdivision,
			legal_description, tax_id, census_tract, property_types,
			building_sqft, sqft_source, year_built, year_built_source, stories,
			new_construction, builder_name, lot_sqft, lot_size_source, acres,
			lot_dimensions, beds, baths_full, baths_half, garage,
			garage_dimensions, carport, elementary_school, middle_school,
			high_school, school_district, tax_year, taxes, total_tax_rate,
			exemptions, mandatory_hoa, maintenance_fee, maintenance_fee_amount,
			maintenance_fee_schedule, maintenance_fee_includes, restrictions,
			waterfront_features, lot_description, interior_features, flooring,
			construction_materials, roof_description, foundation_description,
			heating, cooling, water_sewer, street_surface, microwave, dishwasher,
			disposal, fireplace_count, fireplace_features, kitchen_features,
			room_types, disclosures, exclusions, financing_terms, remarks,
			directions, list_agent, appointment_phone, agent_alternate_phone,
			virtual_tour_1, virtual_tour_2, master_planned, master_planned_name,
			market_area, area, pool_private, pool_area, golf_course,
			utility_district, lot_value, also_for_lease, styles, energy_features,
			green_certifications, raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42, $43,
			$44, $45, $46, $47, $48, $49, $50, $51, $52, $53, $54, $55, $56, $57,
			$58, $59, $60, $61, $62, $63, $64, $65, $66, $67, $68, $69, $70, $71,
			$72, $73, $74, $75, $76, $77, $78, $79, $80, $81, $82, $83, $84, $85,
			$86, $87, $88, $89, $90, $91, $92, $93, $94, $95
		)`

	_, err = tx.Exec(ctx, query,
		l.ID, l.OwnerID, l.Status, l.ExternalID, l.ListKind, l.ListPrice,
		l.ListDate, l.StreetNumber, l.StreetDir, l.StreetName, l.StreetSuffix,
		l.UnitNumber, l.City, l.State, l.PostalCode, l.PostalCodeExt,
		l.County, l.Subdivision, l.LegalDescription, l.TaxID, l.CensusTract,
		l.PropertyTypes, l.BuildingSqFt, l.SqFtSource, l.YearBuilt,
		l.YearBuiltSource, l.Stories, l.NewConstruction, l.BuilderName,
		l.LotSqFt, l.LotSizeSource, l.Acres, l.LotDimensions, l.Beds,
		l.BathsFull, l.BathsHalf, l.Garage, l.GarageDimensions, l.Carport,
		l.ElementarySchool, l.MiddleSchool, l.HighSchool, l.SchoolDistrict,
		l.TaxYear, l.TaxAnnual, l.TaxRate, l.Exemptions, l.MandatoryHOA,
		l.MaintenanceFee, l.MaintenanceFeeAmount, l.MaintenanceFeeSchedule,
		l.MaintenanceFeeIncludes, l.Restrictions, l.WaterfrontFeatures,
		l.LotDescription, l.InteriorFeatures, l.Flooring,
		l.ConstructionMaterials, l.RoofDescription, l.FoundationDescription,
		l.Heating, l.Cooling, l.WaterSewer, l.StreetSurface, l.Microwave,
		l.Dishwasher, l.Disposal, l.FireplaceCount, l.FireplaceFeatures,
		l.KitchenFeatures, l.RoomTypes, l.Disclosures, l.Exclusions,
		l.FinancingTerms, l.Remarks, l.Directions, l.ListAgent,
		l.AppointmentPhone, l.AgentAlternatePhone, l.VirtualTour1,
		l.VirtualTour2, l.MasterPlanned, l.MasterPlannedName, l.MarketArea,
		l.Area, l.PoolPrivate, l.PoolArea, l.GolfCourse, l.UtilityDistrict,
		l.LotValue, l.AlsoForLease, l.Styles, l.EnergyFeatures,
		l.GreenCertifications, l.RawData,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateListing
		}
		return fmt.Errorf("insert listing: %w", err)
	}

	for _, img := range l.Images {
		_, err = tx.Exec(ctx,
			`INSERT INTO property_images (id, property_id, url, position) VALUES ($1, $2, $3, $4)`,
			uuid.New(), l.ID, img.URL, img.Position,
		)
		if err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =============================================================================
// Photo mirror queue
// =============================================================================

// PropertyImage is one image row in mirror-queue terms.
type PropertyImage struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PropertyID  uuid.UUID `json:"property_id" db:"property_id"`
	URL         string    `json:"url" db:"url"`
	Position    int       `json:"position" db:"position"`
	S3Key       *string   `json:"s3_key" db:"s3_key"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Status      string    `json:"status" db:"status"`
	Attempts    int       `json:"attempts" db:"attempts"`
}

const (
	ImageStatusPending  = "pending"
	ImageStatusMirrored = "mirrored"
	ImageStatusFailed   = "failed"
)

func (s *PostgresStore) GetPendingImages(ctx context.Context, limit int) ([]PropertyImage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, url, position, s3_key, COALESCE(content_hash, ''), status, attempts
		FROM property_images
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []PropertyImage
	for rows.Next() {
		var img PropertyImage
		if err := rows.Scan(
			&img.ID, &img.PropertyID, &img.URL, &img.Position,
			&img.S3Key, &img.ContentHash, &img.Status, &img.Attempts,
		); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PostgresStore) UpdateImageStatus(ctx context.Context, id uuid.UUID, status string, s3Key *string, contentHash string, attempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE property_images
		SET status = $2, s3_key = COALESCE($3, s3_key), content_hash = COALESCE(NULLIF($4, ''), content_hash), attempts = $5
		WHERE id = $1`,
		id, status, s3Key, contentHash, attempts)
	return err
}
