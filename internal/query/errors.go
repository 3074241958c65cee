package query

import (
	"errors"
	"fmt"
)

// Kind classifies a failed query.
type Kind string

// Failure kinds.
const (
	KindNoData                Kind = "no_data"
	KindInvalidRequest        Kind = "invalid_request"
	KindModelUnavailable      Kind = "model_unavailable"
	KindScriptExecutionFailed Kind = "script_execution_failed"
	KindInterpretationFailed  Kind = "interpretation_failed"
	KindCancelled             Kind = "cancelled"
	KindPromptInvalid         Kind = "prompt_invalid"
)

// ErrPromptBuild marks a prompt that could not be rendered from the
// configured catalogue. No model call is made.
var ErrPromptBuild = errors.New("prompt could not be built")

var userMessages = map[Kind]string{
	KindNoData:                "No hay datos disponibles para los filtros seleccionados.",
	KindInvalidRequest:        "Por favor, escribe una pregunta.",
	KindModelUnavailable:      "No puedo conectarme con mi motor de IA. Inténtalo de nuevo más tarde.",
	KindScriptExecutionFailed: "¡Oops! No pude ejecutar el análisis para tu pregunta. Intenta reformularla.",
	KindInterpretationFailed:  "Obtuve un resultado, pero no pude interpretarlo. Inténtalo de nuevo.",
	KindCancelled:             "La consulta fue cancelada.",
	KindPromptInvalid:         "La configuración de mensajes del asistente no es válida. Revisa el catálogo de prompts.",
}

// Error is a failed query. State is where the query stood when it failed.
type Error struct {
	Kind    Kind
	State   State
	Message string
	Err     error

	// Script is the generated script, when one was obtained.
	Script string
	// Trace is the state sequence up to and including StateFailed.
	Trace []State
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is a short end-user description of the failure.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return "Ocurrió un error al procesar tu pregunta."
}
