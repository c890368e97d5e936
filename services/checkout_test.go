package services

import (
	"errors"

	"github.com/shopspring/decimal"

	"storefront-order-service/models"
)

func (s *OrderServiceSuite) checkoutRequest(fee string, lines ...models.CartLine) *models.CheckoutRequest {
	return &models.CheckoutRequest{
		Customer:    customer(),
		Lines:       lines,
		ShippingFee: dec(fee),
	}
}

func (s *OrderServiceSuite) TestCheckout_AllLinesShareBatch() {
	result, err := s.svc.Checkout(s.ctx, s.checkoutRequest("5.00",
		models.CartLine{ProductID: 1, ProductSize: "40", Quantity: 1},
		models.CartLine{ProductID: 2, Quantity: 2},
	))
	s.Require().NoError(err)
	s.NotEmpty(result.BatchID)

	placed := result.Placed()
	s.Require().Len(placed, 2)
	s.Empty(result.Failed())
	for _, o := range placed {
		s.Require().NotNil(o.BatchID)
		s.Equal(result.BatchID, *o.BatchID)
	}

	// 49.99 and 30.00 of a 79.99 subtotal.
	s.True(dec("3.12").Equal(placed[0].ShippingFee), placed[0].ShippingFee.String())
	s.True(dec("1.88").Equal(placed[1].ShippingFee), placed[1].ShippingFee.String())
	s.True(dec("5.00").Equal(result.ShippingCharged()))

	batch, err := s.svc.GetBatch(s.ctx, result.BatchID)
	s.Require().NoError(err)
	s.Len(batch.Orders, 2)
	s.True(dec("5.00").Equal(batch.ShippingCharged), batch.ShippingCharged.String())
	s.True(dec("84.99").Equal(batch.Total), batch.Total.String())

	_, err = s.svc.GetBatch(s.ctx, "no-such-batch")
	var notFound *NotFoundError
	s.ErrorAs(err, &notFound)

	s.Contains(s.publisher.types(), models.EventBatchCompleted)
}

func (s *OrderServiceSuite) TestCheckout_PartialFailureKeepsCommittedLines() {
	result, err := s.svc.Checkout(s.ctx, s.checkoutRequest("10.00",
		models.CartLine{ProductID: 2, Quantity: 1},
		models.CartLine{ProductID: 1, ProductSize: "42", Quantity: 4},
		models.CartLine{ProductID: 1, ProductSize: "40", Quantity: 2},
	))
	s.Require().NoError(err)
	s.Require().Len(result.Lines, 3)

	s.NotNil(result.Lines[0].Order)
	s.Nil(result.Lines[1].Order)
	s.NotNil(result.Lines[2].Order)

	var stockErr *InsufficientStockError
	s.Require().True(errors.As(result.Lines[1].Err, &stockErr))
	s.Equal(3, stockErr.Available)

	placed := result.Placed()
	s.Require().Len(placed, 2)
	s.Equal(*placed[0].BatchID, *placed[1].BatchID)

	// Subtotals 15.00, 199.96, 99.98 of 314.94.
	shares := ApportionShipping(dec("10.00"), []decimal.Decimal{dec("15.00"), dec("199.96"), dec("99.98")})
	s.True(shares[0].Equal(placed[0].ShippingFee))
	s.True(shares[2].Equal(placed[1].ShippingFee))
	s.True(shares[0].Add(shares[2]).Equal(result.ShippingCharged()))
	s.True(result.ShippingCharged().LessThan(dec("10.00")))

	s.Equal(3, s.store.sizeQuantity(1, "42"))
	s.Equal(3, s.store.sizeQuantity(1, "40"))
	s.Equal(3, s.store.flatQuantity(2))
	s.Equal(2, s.store.orderCount())
}

func (s *OrderServiceSuite) TestCheckout_SameSizeLinesSerialize() {
	result, err := s.svc.Checkout(s.ctx, s.checkoutRequest("0",
		models.CartLine{ProductID: 1, ProductSize: "42", Quantity: 2},
		models.CartLine{ProductID: 1, ProductSize: "42", Quantity: 2},
	))
	s.Require().NoError(err)

	s.Len(result.Placed(), 1)
	s.Len(result.Failed(), 1)
	s.Equal(1, s.store.sizeQuantity(1, "42"))
}

func (s *OrderServiceSuite) TestCheckout_UsesCallerBatchID() {
	batchID := "b7d5f2c4-0000-4000-8000-000000000001"
	req := s.checkoutRequest("0", models.CartLine{ProductID: 2, Quantity: 1})
	req.BatchID = &batchID

	result, err := s.svc.Checkout(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(batchID, result.BatchID)
	s.Equal(batchID, *result.Placed()[0].BatchID)
}

func (s *OrderServiceSuite) TestCheckout_RejectsEmptyCartAndNegativeShipping() {
	_, err := s.svc.Checkout(s.ctx, s.checkoutRequest("0"))
	s.ErrorAs(err, new(*ValidationError))

	_, err = s.svc.Checkout(s.ctx, s.checkoutRequest("-1", models.CartLine{ProductID: 2, Quantity: 1}))
	s.ErrorAs(err, new(*ValidationError))
	s.Equal(0, s.store.orderCount())
}

func (s *OrderServiceSuite) TestCheckout_UnknownProductLine() {
	result, err := s.svc.Checkout(s.ctx, s.checkoutRequest("4.00",
		models.CartLine{ProductID: 77, Quantity: 1},
		models.CartLine{ProductID: 2, Quantity: 1},
	))
	s.Require().NoError(err)

	s.ErrorAs(result.Lines[0].Err, new(*NotFoundError))
	s.Require().NotNil(result.Lines[1].Order)
	s.True(dec("4.00").Equal(result.Lines[1].Order.ShippingFee))
}
