package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"personajes/portal/internal/session"
)

type GetPersonajesResponse struct {
	StatusCode int         `json:"statusCode"`
	Msg        string      `json:"msg"`
	Data       []Personaje `json:"data"`
	Success    bool        `json:"success"`
}

type Personaje struct {
	ID        int64  `json:"id"`
	Nombre    string `json:"nombre"`
	Foto      string `json:"foto"`
	Especie   string `json:"especie"`
	Genero    string `json:"genero"`
	Estado    string `json:"estado"`
	Origen    string `json:"origen"`
	Tipo      string `json:"tipo"`
	Flag      *bool  `json:"flag,omitempty"`
	IDUsuario *int64 `json:"idUsuario,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Usuario struct {
	ID        int64        `json:"id"`
	Nombres   string       `json:"nombres"`
	Email     string       `json:"email"`
	Rol       session.Role `json:"rol"`
	Password  string       `json:"-"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}

func (u *Usuario) UnmarshalJSON(b []byte) error {
	type plain Usuario
	aux := struct {
		*plain
		Password string `json:"password"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.Password = aux.Password
	return nil
}

func (u Usuario) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: usuario %d has no email", ErrInvalidPayload, u.ID)
	}
	rol, err := session.ParseRole(string(u.Rol))
	if err != nil {
		return fmt.Errorf("%w: usuario %d: %v", ErrInvalidPayload, u.ID, err)
	}
	if string(rol) != string(u.Rol) {
		return fmt.Errorf("%w: usuario %d rol must be %s or %s", ErrInvalidPayload, u.ID, session.RoleAdmin, session.RoleRegular)
	}
	return nil
}
