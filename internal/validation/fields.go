package validation

// Form field names. The same names are used by the HTML forms, the persisted
// drafts and the CLI case files.
const (
	// identity
	FieldFullName      = "full_name"
	FieldRUT           = "rut"
	FieldBirthDate     = "birth_date"
	FieldNationality   = "nationality"
	FieldMaritalStatus = "marital_status"
	FieldOccupation    = "occupation"
	FieldAddress       = "address"
	FieldRegion        = "region"
	FieldCommune       = "commune"
	FieldPhone         = "phone"
	FieldEmail         = "email"

	// property
	FieldSameAsDomicile = "same_as_domicile"
	FieldRollID         = "roll_id"
	FieldAppraisal      = "appraisal"
	FieldFojas          = "fojas"
	FieldRegistryNumber = "registry_number"
	FieldRegistryYear   = "registry_year"
	FieldConservator    = "conservator"
	FieldOwnership      = "ownership"
	FieldResidential    = "residential"

	// economics
	FieldMonthlyIncome       = "monthly_income"
	FieldSources             = "sources"
	FieldOtherDescription    = "other_description"
	FieldRegistry            = "registry"
	FieldRegistryTier        = "registry_tier"
	FieldOwnsOtherProperties = "owns_other_properties"
	FieldCurrentBenefit      = "current_benefit"

	// contributions; charge columns are parallel lists
	FieldQuarterlyAmount   = "quarterly_amount"
	FieldHasPendingCharges = "has_pending_charges"
	FieldCharges           = "charges"
	FieldChargeID          = "charge_id"
	FieldChargeDate        = "charge_date"
	FieldChargeAmount      = "charge_amount"

	// prior proceeding
	FieldFiledRequest     = "filed_request"
	FieldRequestDate      = "request_date"
	FieldReceivedDenial   = "received_denial"
	FieldResolutionNumber = "resolution_number"
	FieldDenialDate       = "denial_date"

	// review
	FieldConfirm = "confirm"
)
