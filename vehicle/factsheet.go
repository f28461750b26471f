package vehicle

import "github.com/fleetline/agvctl/wire"

// BuildFactsheet assembles the factsheetRequest instant action's response
// document directly from configuration — a factsheet has no lifecycle of
// its own, so this is a plain accessor rather than something routed
// through the net manager (§4.5).
func (v *Vehicle) BuildFactsheet() wire.Factsheet {
	agv := v.cfg.AGV

	actions := make([]wire.AGVAction, 0, len(agv.SupportedActions))
	for _, a := range agv.SupportedActions {
		actions = append(actions, wire.AGVAction{
			ActionType:        a.ActionType,
			ActionDescription: a.ActionDescription,
			ActionScopes:      append([]string(nil), a.ActionScopes...),
		})
	}

	return wire.Factsheet{
		Header: v.stampHeader("factsheet"),
		TypeSpecification: wire.TypeSpecification{
			SeriesName:        agv.Manufacturer + "/" + agv.SerialNumber,
			AGVKinematic:      agv.AGVKinematic,
			AGVClass:          agv.AGVClass,
			MaxLoadMass:       agv.MaxLoadMass,
			LocalizationTypes: append([]string(nil), agv.LocalizationTypes...),
			NavigationTypes:   append([]string(nil), agv.NavigationTypes...),
		},
		ProtocolFeatures: wire.ProtocolFeatures{AGVActions: actions},
	}
}
