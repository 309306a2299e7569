package domain

// TenthsToCelsius converts tenths of a degree to degrees Celsius.
func TenthsToCelsius(v *int64) *float64 {
	if v == nil {
		return nil
	}
	c := float64(*v) / 10.0
	return &c
}

// TenthsMMToCM converts tenths of a millimeter to centimeters.
func TenthsMMToCM(v *int64) *float64 {
	if v == nil {
		return nil
	}
	cm := float64(*v) / 100.0
	return &cm
}
