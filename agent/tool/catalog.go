package tool

import (
	openaisdk "github.com/openai/openai-go"
)

// Tool names are part of the model's function-calling contract and must
// not drift.
const (
	ToolIdentifyUser         = "identify_user"
	ToolFetchSlots           = "fetch_slots"
	ToolBookAppointment      = "book_appointment"
	ToolRetrieveAppointments = "retrieve_appointments"
	ToolCancelAppointment    = "cancel_appointment"
	ToolModifyAppointment    = "modify_appointment"
	ToolEndConversation      = "end_conversation"
)

// Catalog returns the function schemas exposed to the model.
func Catalog() []openaisdk.ChatCompletionToolParam {
	return []openaisdk.ChatCompletionToolParam{
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolIdentifyUser,
				Description: openaisdk.String("Ask for and store the user's phone number to identify them. Use this before booking, retrieving, canceling, or modifying appointments."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"phone_number": map[string]any{
							"type":        "string",
							"description": "The user's phone number (e.g., '+1234567890' or '1234567890')",
						},
					},
					"required": []string{"phone_number"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolFetchSlots,
				Description: openaisdk.String("Fetch available appointment slots (every day from 9 AM to 5 PM in hourly intervals)."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{
							"type":        "string",
							"description": "The date to check slots for (YYYY-MM-DD). Defaults to today when omitted.",
						},
					},
					"required": []string{},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolBookAppointment,
				Description: openaisdk.String("Book an appointment for the user. Requires the user to be identified first. Prevents double-booking."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"date":         map[string]any{"type": "string", "description": "Appointment date in YYYY-MM-DD format"},
						"time":         map[string]any{"type": "string", "description": "Appointment time in HH:MM format (24-hour)"},
						"user_name":    map[string]any{"type": "string", "description": "Name of the user booking the appointment"},
						"phone_number": map[string]any{"type": "string", "description": "Phone number of the user (should match the identified user)"},
					},
					"required": []string{"date", "time", "user_name", "phone_number"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolRetrieveAppointments,
				Description: openaisdk.String("Retrieve all appointments for the identified user."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"phone_number": map[string]any{"type": "string", "description": "Phone number of the user to retrieve appointments for"},
					},
					"required": []string{"phone_number"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolCancelAppointment,
				Description: openaisdk.String("Cancel an existing appointment."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"appointment_id": map[string]any{"type": "string", "description": "The ID of the appointment to cancel"},
						"phone_number":   map[string]any{"type": "string", "description": "Phone number of the user (for verification)"},
					},
					"required": []string{"appointment_id", "phone_number"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolModifyAppointment,
				Description: openaisdk.String("Modify an existing appointment's date or time."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"appointment_id": map[string]any{"type": "string", "description": "The ID of the appointment to modify"},
						"new_date":       map[string]any{"type": "string", "description": "New appointment date in YYYY-MM-DD format (optional)"},
						"new_time":       map[string]any{"type": "string", "description": "New appointment time in HH:MM format, 24-hour (optional)"},
						"phone_number":   map[string]any{"type": "string", "description": "Phone number of the user (for verification)"},
					},
					"required": []string{"appointment_id", "phone_number"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolEndConversation,
				Description: openaisdk.String("End the conversation gracefully. Use this when the user says goodbye, thanks, or indicates they're done."),
				Parameters: openaisdk.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
	}
}
