package models

import "time"

type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"not null" json:"full_name"`
	Role         string    `gorm:"not null;default:inspector" json:"role"`
	Phone        *string   `json:"phone,omitempty"`
	CompanyID    *string   `gorm:"type:uuid" json:"company_id,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Company struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Code      *string   `json:"code,omitempty"`
	Project   *string   `json:"project,omitempty"`
	Gate      *string   `json:"gate,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type EquipmentType struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex;not null" json:"name"`
	Category       string    `gorm:"not null;default:vehicle" json:"category"`
	Classification *string   `json:"classification,omitempty"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// VehicleEquipment's status column holds the persisted lifecycle state.
// Blacklisted overrides it for display and gating; the effective status shown
// to callers is computed in the lifecycle package, never stored here.
type VehicleEquipment struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	PlateNumber        string     `gorm:"uniqueIndex;not null" json:"plate_number"`
	DriverName         *string    `json:"driver_name,omitempty"`
	NationalID         *string    `json:"national_id,omitempty"`
	CompanyID          *string    `gorm:"type:uuid;index" json:"company_id,omitempty"`
	EquipmentTypeID    *string    `gorm:"type:uuid" json:"equipment_type_id,omitempty"`
	YearOfManufacture  *int       `json:"year_of_manufacture,omitempty"`
	Project            *string    `json:"project,omitempty"`
	Gate               *string    `json:"gate,omitempty"`
	Status             string     `gorm:"not null;default:updated_inspection_required;index" json:"status"`
	Blacklisted        bool       `gorm:"not null;default:false;index" json:"blacklisted"`
	NextInspectionDate *time.Time `json:"next_inspection_date,omitempty"`
	CreatedBy          *string    `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Company       *Company       `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	EquipmentType *EquipmentType `gorm:"foreignKey:EquipmentTypeID" json:"equipment_type,omitempty"`
}

func (VehicleEquipment) TableName() string { return "vehicle_equipment" }

// FailureReason is the administrator-maintained list of canonical reasons an
// inspection may fail. Rows are deactivated, never deleted, so historical
// inspections keep their references.
type FailureReason struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Inspection struct {
	ID                  string     `gorm:"type:uuid;primaryKey" json:"id"`
	VehicleEquipmentID  string     `gorm:"type:uuid;not null;index" json:"vehicle_equipment_id"`
	AssignmentID        *string    `gorm:"type:uuid;index" json:"assignment_id,omitempty"`
	InspectionType      string     `gorm:"not null;default:routine" json:"inspection_type"`
	AssignedInspectorID *string    `gorm:"type:uuid" json:"assigned_inspector_id,omitempty"`
	AssignedBy          *string    `gorm:"type:uuid" json:"assigned_by,omitempty"`
	ScheduledDate       time.Time  `gorm:"not null" json:"scheduled_date"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Result              string     `gorm:"not null;default:pending" json:"result"`
	FailureRemark       *string    `json:"failure_remark,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	VerifiedBy          *string    `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	Status              string     `gorm:"not null;default:scheduled;index" json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	FailureReasons   []FailureReason   `gorm:"many2many:inspection_failure_reasons" json:"failure_reasons,omitempty"`
	VehicleEquipment *VehicleEquipment `gorm:"foreignKey:VehicleEquipmentID" json:"vehicle_equipment,omitempty"`
	Inspector        *User             `gorm:"foreignKey:AssignedInspectorID" json:"inspector,omitempty"`
	Verifier         *User             `gorm:"foreignKey:VerifiedBy" json:"verifier,omitempty"`
	ChecklistItems   []ChecklistItem   `gorm:"foreignKey:InspectionID" json:"checklist_items,omitempty"`
}

// ChecklistItem rows are append-only; they are written once when the
// inspection result is submitted and never updated afterward.
type ChecklistItem struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	InspectionID    string     `gorm:"type:uuid;not null;index" json:"inspection_id"`
	ItemName        string     `gorm:"not null" json:"item_name"`
	ItemDescription *string    `json:"item_description,omitempty"`
	Passed          *bool      `json:"passed"`
	Notes           *string    `json:"notes,omitempty"`
	CheckedAt       *time.Time `json:"checked_at,omitempty"`
}

type Assignment struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     string    `gorm:"type:uuid;not null;index" json:"company_id"`
	InspectorID   *string   `gorm:"type:uuid" json:"inspector_id,omitempty"`
	ScheduledDate time.Time `gorm:"not null" json:"scheduled_date"`
	Status        string    `gorm:"not null;default:assigned;index" json:"status"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedBy     *string   `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Inspector *User    `gorm:"foreignKey:InspectorID" json:"inspector,omitempty"`
}

// AuditLog is append-only. Old/new values are stored raw; sensitive keys are
// redacted at render time by the audit package, not at write time.
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	UserEmail *string   `json:"user_email,omitempty"`
	UserRole  *string   `json:"user_role,omitempty"`
	Action    string    `gorm:"not null" json:"action"`
	TableName *string   `json:"table_name,omitempty"`
	RecordID  *string   `json:"record_id,omitempty"`
	OldValues JSONB     `gorm:"type:jsonb;default:'{}'" json:"old_values"`
	NewValues JSONB     `gorm:"type:jsonb;default:'{}'" json:"new_values"`
	IPAddress *string   `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	JTI        string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID     string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ViewAsRole *string    `json:"view_as_role,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
