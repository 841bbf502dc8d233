package memory

import "fmt"

func errDuplicate(field, value string) error {
	return fmt.Errorf("unique constraint failed: %s %q already exists", field, value)
}
