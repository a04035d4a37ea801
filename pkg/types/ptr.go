package types

// StringPtr 返回字符串指针
func StringPtr(s string) *string { return &s }

// IntPtr 返回整数指针
func IntPtr(i int) *int { return &i }

// BoolPtr 返回布尔指针
func BoolPtr(b bool) *bool { return &b }
