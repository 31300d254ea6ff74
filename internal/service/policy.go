package service

import "ayuda-red/internal/domain"

// Sujetos y acciones sobre los que se evalúan permisos.
const (
	SubjectAidRequest = "aid_request"

	ActionCreate       = "create"
	ActionRead         = "read"
	ActionUpdateStatus = "update_status"
	ActionDelete       = "delete"
)

// Ability es un par {sujeto, acción} permitido para un rol.
type Ability struct {
	Subject string
	Action  string
}

// roleAbilities es la tabla estática rol → habilidades. Los usuarios regulares
// solo crean y leen sus propias solicitudes; transición de estado y borrado
// quedan reservados a administradores.
var roleAbilities = map[string][]Ability{
	domain.RoleUser: {
		{SubjectAidRequest, ActionCreate},
		{SubjectAidRequest, ActionRead},
	},
	domain.RoleAdmin: {
		{SubjectAidRequest, ActionCreate},
		{SubjectAidRequest, ActionRead},
		{SubjectAidRequest, ActionUpdateStatus},
		{SubjectAidRequest, ActionDelete},
	},
}

// Can evalúa si el rol tiene la habilidad {sujeto, acción}.
func Can(role, subject, action string) bool {
	for _, ability := range roleAbilities[role] {
		if ability.Subject == subject && ability.Action == action {
			return true
		}
	}
	return false
}

// CanAccessAidRequest aplica la regla dueño-o-admin para lecturas puntuales.
func CanAccessAidRequest(role string, principalID int64, req domain.AidRequest) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return Can(role, SubjectAidRequest, ActionRead) && req.UserID == principalID
}
