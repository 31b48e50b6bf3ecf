package identity

// Candidate field names per logical field, in priority order. Upstream
// datasets rename and re-case columns between revisions; supporting a new
// revision means extending the list, not the lookup logic.
var (
	RecallIDFields        = []string{"nhtsa_id", "NHTSA_ID", "nhtsaCampaignNumber", "NHTSACampaignNumber"}
	RecallMakeFields      = []string{"manufacturer", "make", "Manufacturer", "Make"}
	RecallComponentFields = []string{"component", "Component"}
	RecallDateFields      = []string{"report_received_date", "report_receive_date", "report_date", "rcl_rpt_date", "ReportReceivedDate"}
	RecallSubjectFields   = []string{"subject", "Subject"}
	RecallCampaignFields  = []string{"mfr_campaign_number", "MFR_CAMPAIGN_NUMBER", "manufacturerCampaignNumber"}

	ComplaintIDFields        = []string{"ODINumber", "odi_number", "odiNumber", "complaint_number"}
	ComplaintMakeFields      = []string{"Make", "make"}
	ComplaintModelFields     = []string{"Model", "model"}
	ComplaintYearFields      = []string{"ModelYear", "model_year", "modelYear", "Year"}
	ComplaintComponentFields = []string{"Component", "component", "components"}
	ComplaintReceivedFields  = []string{"DateReceived", "date_received", "dateComplaintFiled"}
	ComplaintIncidentFields  = []string{"IncidentDate", "incident_date", "dateOfIncident"}
	ComplaintSummaryFields   = []string{"Summary", "summary", "Description"}
	ComplaintStateFields     = []string{"State", "state"}
)
