package logging

import "time"

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field rendered as a string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err creates an error field. A nil error renders as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// PID creates a field identifying a persistent identifier by its natural key
func PID(pidType, pidValue string) Field {
	return Field{Key: "pid", Value: pidType + ":" + pidValue}
}

// RelationType creates a field naming a relation type
func RelationType(name string) Field {
	return Field{Key: "relation_type", Value: name}
}
