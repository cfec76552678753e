package schedule

// Stop attribute keys written by access assignment.
func AccessLinkKey(mode string) string {
	return "accessLinkId_" + mode
}

func AccessibleKey(mode string) string {
	return mode + "Accessible"
}

func CatchmentKey(mode string) string {
	return mode + "_distance_catchment_tag"
}

// SetStopAccess records that the stop reaches the network for mode through linkID, found
// within catchment metres.
func (s *Schedule) SetStopAccess(stopID, mode, linkID string, catchment float64) error {
	return s.ApplyAttributesToStop(stopID, map[string]any{
		AccessLinkKey(mode): linkID,
		AccessibleKey(mode): true,
		CatchmentKey(mode):  catchment,
	})
}

// SetStopInaccessible records that no link of mode was found for the stop, dropping any
// access link assigned before.
func (s *Schedule) SetStopInaccessible(stopID, mode string) error {
	if stop, ok := s.stops[stopID]; ok {
		delete(stop.Attributes, AccessLinkKey(mode))
		delete(stop.Attributes, CatchmentKey(mode))
	}
	return s.ApplyAttributesToStop(stopID, map[string]any{
		AccessibleKey(mode): false,
	})
}

// AccessLink returns the access link of a stop for mode, if one was assigned.
func (st *Stop) AccessLink(mode string) (string, bool) {
	id, ok := st.Attributes[AccessLinkKey(mode)].(string)
	return id, ok
}
