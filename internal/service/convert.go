package service

import (
	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/ledger"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/settlement"
	"github.com/mmynk/teamtab/pkg/api"
)

func teamToAPI(t *models.Team) *api.Team {
	return &api.Team{
		ID:        t.ID,
		Name:      t.Name,
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
	}
}

func participantToAPI(p *models.Participant) *api.Participant {
	return &api.Participant{
		ID:        p.ID,
		TeamID:    p.TeamID,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
		RemovedAt: p.RemovedAt,
		Removed:   p.Removed(),
	}
}

func participantsToAPI(ps []*models.Participant) []*api.Participant {
	out := make([]*api.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, participantToAPI(p))
	}
	return out
}

func transactionToAPI(tx *models.Transaction, roster *ledger.Roster) *api.Transaction {
	out := &api.Transaction{
		ID:          tx.ID,
		TeamID:      tx.TeamID,
		Title:       tx.Title,
		Date:        models.FormatDate(tx.Date),
		PayerID:     tx.PayerID,
		Total:       tx.Total,
		IsRepayment: tx.IsRepayment,
		Splits:      make([]*api.SplitAmount, 0, len(tx.Splits)),
		CreatedBy:   tx.CreatedBy,
		CreatedAt:   tx.CreatedAt,
	}
	if roster != nil {
		out.PayerName = roster.Label(tx.PayerID)
	}
	for _, s := range tx.Splits {
		out.Splits = append(out.Splits, &api.SplitAmount{ParticipantID: s.ParticipantID, Amount: s.Amount})
	}
	return out
}

func balancesToAPI(teamID string, version int64, sheet *calculator.BalanceSheet, roster *ledger.Roster) *api.GetBalancesResponse {
	resp := &api.GetBalancesResponse{
		TeamID:              teamID,
		Version:             version,
		Balances:            []*api.Balance{},
		SuggestedRepayments: []*api.SuggestedRepayment{},
	}
	for _, line := range settlement.BalanceLines(sheet, roster) {
		resp.Balances = append(resp.Balances, &api.Balance{
			ParticipantID: line.ParticipantID,
			Name:          line.Label,
			Removed:       line.Removed,
			NetBalance:    line.NetBalance,
			TotalPaid:     line.TotalPaid,
			TotalOwed:     line.TotalOwed,
		})
	}
	for _, t := range settlement.SuggestRepayments(sheet.Balances) {
		resp.SuggestedRepayments = append(resp.SuggestedRepayments, &api.SuggestedRepayment{
			FromID:   t.From,
			FromName: roster.Label(t.From),
			ToID:     t.To,
			ToName:   roster.Label(t.To),
			Amount:   t.Amount,
		})
	}
	for _, v := range sheet.Violations {
		resp.Warnings = append(resp.Warnings, &api.ConsistencyWarning{
			TransactionID: v.TransactionID,
			Total:         v.Total,
			SplitSum:      v.SplitSum,
			Message:       v.String(),
		})
	}
	return resp
}
