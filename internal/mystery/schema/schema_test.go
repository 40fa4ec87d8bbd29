package schema

import (
	"strings"
	"testing"
)

const validCaseDoc = `{
  "title": "The Winding Clock",
  "setting": "A coastal rectory",
  "cast": [
    {"name": "Edmund Hale", "eligible": true},
    {"name": "Vera Lockwood", "eligible": true},
    {"name": "Father Brennan", "eligible": true}
  ],
  "culprit": "Edmund Hale",
  "mechanism": "He rewound the library clock to fake his alibi",
  "false_assumption": "The murder happened at seven o'clock",
  "inference_path": [
    {"number": 1, "observation": "The clock chimed seven", "correction": "It ran fifteen minutes fast", "effect": "The alibi collapses"}
  ],
  "constraints": [
    {"kind": "contradiction", "description": "Hale heard the chime from the garden"}
  ],
  "discriminating_test": {"description": "Rewind the clock against the church bells"}
}`

func TestValidate_ValidCase(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := v.Validate(KindCase, []byte(validCaseDoc))
	if !res.Valid {
		t.Fatalf("valid case rejected: %v", res.Errors)
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	doc := strings.Replace(validCaseDoc, `"culprit": "Edmund Hale",`, "", 1)
	res := v.Validate(KindCase, []byte(doc))
	if res.Valid {
		t.Fatal("case without culprit must be invalid")
	}
	if len(res.Errors) == 0 {
		t.Fatal("invalid artifact must carry at least one error")
	}
}

func TestValidate_EnumViolation(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := v.Validate(KindBlindVerdict, []byte(`{"guessed_culprit": "Hale", "confidence": "sure"}`))
	if res.Valid {
		t.Fatal("out-of-enum confidence must be invalid")
	}
}

func TestValidate_MalformedJSONIsInvalidNotFatal(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := v.Validate(KindClues, []byte("not json {"))
	if res.Valid {
		t.Fatal("malformed JSON must be invalid")
	}
	if len(res.Errors) == 0 {
		t.Fatal("malformed JSON must report an error string")
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := v.Validate("no_such_kind", []byte(`{}`))
	if res.Valid {
		t.Fatal("unknown kind must be invalid")
	}
}

func TestKinds_AllCompiled(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []string{KindSetting, KindCast, KindCase, KindClues, KindOutline, KindProse, KindAuditVerdict, KindBlindVerdict, KindNovelty}
	have := map[string]bool{}
	for _, k := range v.Kinds() {
		have[k] = true
	}
	for _, k := range want {
		if !have[k] {
			t.Fatalf("kind %s not compiled; have %v", k, v.Kinds())
		}
	}
}
