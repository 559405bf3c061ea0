package models

import "fmt"

// InsufficientBalanceError means a monetized operation (extension purchase
// or cooldown reset) was refused for lack of currency. It never corrupts
// session state; callers surface the shortfall and a path to acquire more.
type InsufficientBalanceError struct {
	CurrentBalance int
	Required       int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.CurrentBalance, e.Required)
}
