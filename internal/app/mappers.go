package app

import (
	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
)

const (
	businessFoundStatus    = "business found"
	businessNotFoundStatus = "no business registered at that address"
)

func registrationResult(b domain.Business) domain.RegistrationResult {
	return domain.RegistrationResult{Business: b.View(), Status: ledger.RegisteredStatus}
}

func submissionResult(o domain.Outcome) domain.SubmissionResult {
	return domain.SubmissionResult{Business: o.Business.View(), NewReview: o.NewReview, Outcome: o.Label(), Status: o.Status()}
}

func singleBusiness(b domain.Business, found bool) domain.SingleBusiness {
	if !found {
		return domain.SingleBusiness{Status: businessNotFoundStatus}
	}
	v := b.View()
	return domain.SingleBusiness{Business: &v, Status: businessFoundStatus}
}

func businessRegistered(b domain.Business) BusinessRegistered {
	return BusinessRegistered{Address: b.Address, Name: b.Name, Description: b.Description}
}

func reviewSubmitted(s domain.Submission, o domain.Outcome) ReviewSubmitted {
	return ReviewSubmitted{
		Business:      s.Business,
		Reviewer:      s.Reviewer,
		Rating:        s.Rating,
		ReceiptID:     s.ReceiptID,
		Outcome:       o.Label(),
		AddedWeight:   o.AddedWeight.String(),
		AverageRating: o.Business.AverageRating,
		TotalWeight:   o.Business.TotalWeight.String(),
		ReviewsCount:  o.Business.ReviewsCount,
	}
}
