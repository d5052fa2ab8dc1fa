package policy

// ResourceDefinition describes a resource type and the actions it supports.
type ResourceDefinition struct {
	Key     string
	Name    string
	Actions []Action
	Parent  ResourceType
}

// RoleDefinition is a role and the "resource:action" permissions it grants.
type RoleDefinition struct {
	Key         Role
	Name        string
	Description string
	Permissions []string
}

var Resources = []ResourceDefinition{
	{Key: string(ResourceMedicalRecord), Name: "Medical Record", Actions: []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionShare}},
	{Key: string(ResourcePrescription), Name: "Prescription", Actions: []Action{ActionView, ActionCreate, ActionUpdate}, Parent: ResourceMedicalRecord},
	{Key: string(ResourceAppointment), Name: "Appointment", Actions: []Action{ActionView, ActionCreate, ActionUpdate}},
	{Key: string(ResourceDiagnosis), Name: "Diagnosis", Actions: []Action{ActionView, ActionCreate, ActionUpdate}, Parent: ResourceMedicalRecord},
	{Key: string(ResourceInsurance), Name: "Insurance", Actions: []Action{ActionView, ActionUpdate}},
	{Key: string(ResourceChat), Name: "Chat", Actions: []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}},
	{Key: string(ResourcePrompt), Name: "Prompt", Actions: []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}},
	{Key: string(ResourceRAGQuery), Name: "RAG Query", Actions: []Action{ActionSearch}},
	{Key: string(ResourceAIResponse), Name: "AI Response", Actions: []Action{ActionView, ActionMask}},
	{Key: string(ResourceAuditLog), Name: "Audit Log", Actions: []Action{ActionView}},
	{Key: string(ResourceNotification), Name: "Notification", Actions: []Action{ActionView}},
}

var Roles = []RoleDefinition{
	{
		Key:         RoleAdmin,
		Name:        "Admin",
		Description: "System administrators with full access",
		Permissions: []string{
			"medicalRecord:view", "medicalRecord:create", "medicalRecord:update", "medicalRecord:delete", "medicalRecord:share",
			"prescription:view", "prescription:create", "prescription:update",
			"appointment:view", "appointment:create", "appointment:update",
			"diagnosis:view", "diagnosis:create", "diagnosis:update",
			"insurance:view", "insurance:update",
			"chat:view", "chat:create", "chat:update", "chat:delete",
			"prompt:view", "prompt:create", "prompt:update", "prompt:delete",
			"ragQuery:search",
			"aiResponse:view", "aiResponse:mask",
			"auditLog:view",
			"notification:view",
		},
	},
	{
		Key:         RoleDoctor,
		Name:        "Doctor",
		Description: "Medical professionals with access to patient records",
		Permissions: []string{
			"medicalRecord:view", "medicalRecord:update",
			"prescription:view", "prescription:create", "prescription:update",
			"appointment:view", "appointment:create", "appointment:update",
			"diagnosis:view", "diagnosis:create", "diagnosis:update",
			"insurance:view",
			"chat:view", "chat:create", "chat:update",
			"prompt:view", "prompt:create", "prompt:update",
			"ragQuery:search",
			"aiResponse:view",
		},
	},
	{
		Key:         RolePatient,
		Name:        "Patient",
		Description: "End-users accessing their own medical information",
		Permissions: []string{
			"medicalRecord:view",
			"appointment:view", "appointment:create",
			"prescription:view",
			"diagnosis:view",
			"insurance:view",
			"chat:view", "chat:create", "chat:update",
			"prompt:view", "prompt:create", "prompt:update",
			"ragQuery:search",
			"aiResponse:view",
		},
	},
	{
		Key:         RoleResearcher,
		Name:        "Researcher",
		Description: "Anonymized data access for medical research",
		Permissions: []string{"ragQuery:search", "aiResponse:view"},
	},
}

// RolePermissions returns the permission list granted by role, or nil for an unknown role.
func RolePermissions(role Role) []string {
	for _, r := range Roles {
		if r.Key == role {
			out := make([]string, len(r.Permissions))
			copy(out, r.Permissions)
			return out
		}
	}
	return nil
}
