package definition

import "github.com/stemsi/medsurvey/internal/model"

// DefaultEndpoint is the Apps Script web app backing the medical survey sheet.
const DefaultEndpoint = "https://script.google.com/macros/s/AKfycbx4H5uv6dViaK2-42L-4SBLvXyZJoebF9ozwwtfty8ioPZgxj3LLz5eONCwjoDa52bY/exec"

// Builtin returns the medical survey served when no definition file is configured.
func Builtin() *model.Definition {
	text := func(key, label string) model.Field {
		return model.Field{Key: key, Label: label, Kind: model.FieldKindText, Placeholder: "Your answer"}
	}

	def := &model.Definition{
		ID:          "medical-survey",
		Title:       "Medical Survey Form",
		Description: "Please fill out all fields below",
		Endpoint:    DefaultEndpoint,
		Questions: []model.Field{
			text("q1", "Which calcium channel reduces blood pressure by dilating arteries...?"),
			text("q2", "Which drug acts on both L- and N- type calcium channels...?"),
			text("q3", "Hypertensive emergency requires"),
			text("q4", "The characteristic feature of acute kidney injury (AKI) is...?"),
			text("q5", "The most commonly used type of dialysis is...?"),
			text("q6", "Which membrane is used in peritoneal dialysis...?"),
			text("q7", "Brand name of 4th generation calcium channel blocker (Cilnidipine) – George Steuart Health"),
			text("q8", "Brand name of Metolazone – George Steuart Health"),
			text("q9", "Brand name of Darbepoetin alfa IV – Divasa Pharma"),
		},
		Profile: []model.Field{
			{Key: "name", Label: "Name", Kind: model.FieldKindText, Placeholder: "Your name"},
			{Key: "station", Label: "Station", Kind: model.FieldKindText, Placeholder: "Your station"},
			{Key: "contact", Label: "Contact Number", Kind: model.FieldKindText, Placeholder: "Your contact number", InputType: "tel"},
			{Key: "specialty", Label: "Specialty", Kind: model.FieldKindText, Placeholder: "Your specialty"},
		},
	}
	applyDefaults(def)
	return def
}

// applyDefaults fills every message the definition left blank.
func applyDefaults(def *model.Definition) {
	m := &def.Messages
	if m.ChoiceIncomplete == "" {
		m.ChoiceIncomplete = "Please answer all multiple choice questions"
	}
	if m.TextIncomplete == "" {
		m.TextIncomplete = "Please answer all brand name questions"
	}
	if m.ProfileIncomplete == "" {
		m.ProfileIncomplete = "Please fill in all personal information fields"
	}
	if m.SuccessTitle == "" {
		m.SuccessTitle = "✔ Submitted Successfully!"
	}
	if m.SuccessDescription == "" {
		m.SuccessDescription = "Your form has been submitted."
	}
	if m.SuccessDurationMS == 0 {
		m.SuccessDurationMS = 4000
	}
	if m.Rejected == "" {
		m.Rejected = "Submission failed. Please try again."
	}
	if m.TransportFailed == "" {
		m.TransportFailed = "An error occurred. Please try again."
	}
	for i := range def.Questions {
		if def.Questions[i].Kind == "" {
			def.Questions[i].Kind = model.FieldKindText
		}
	}
	for i := range def.Profile {
		if def.Profile[i].Kind == "" {
			def.Profile[i].Kind = model.FieldKindText
		}
	}
}
