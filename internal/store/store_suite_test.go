package store

import (
	"context"
	"log/slog"
	"os"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/stretchr/testify/suite"
)

// skipIntegrationTests is the environment variable that can be set to skip database-backed suites.
const skipIntegrationTests = "STORE_SVC_SKIP_INTEGRATION_TESTS"

// storeSuite holds the behaviour every ProductStore and SaleStore pair must share.
// Backend suites embed it and provide the stores and a reset hook.
type storeSuite struct {
	suite.Suite
	ctx      context.Context
	logger   *slog.Logger
	products ProductStore
	sales    SaleStore
	reset    func()
}

func (s *storeSuite) init() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetupTest empties the backend before each test.
func (s *storeSuite) SetupTest() {
	s.reset()
}

func (s *storeSuite) createProduct(name string, quantity int32) Product {
	p, err := s.products.Create(s.ctx, name, quantity)
	s.Require().NoError(err)
	return *p
}

func (s *storeSuite) TestProduct_CreateAndFind() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)

	// when
	byID, errID := s.products.FindByID(s.ctx, suit.ID)
	byName, errName := s.products.FindByName(s.ctx, "Martelo de Thor")
	all, errAll := s.products.FindAll(s.ctx)

	// then
	s.Require().NoError(errID)
	s.Equal(suit, *byID)
	s.Require().NoError(errName)
	s.Equal(hammer, *byName)
	s.Require().NoError(errAll)
	s.Equal([]Product{hammer, suit}, all)
}

func (s *storeSuite) TestProduct_FindAll_Empty() {
	all, err := s.products.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *storeSuite) TestProduct_NotFound() {
	_, err := s.products.FindByID(s.ctx, 999)
	s.ErrorIs(err, storeerrors.ErrProductNotFound)

	_, err = s.products.FindByName(s.ctx, "Nenhum")
	s.ErrorIs(err, storeerrors.ErrProductNotFound)

	_, err = s.products.Update(s.ctx, Product{ID: 999, Name: "Nenhum", Quantity: 1})
	s.ErrorIs(err, storeerrors.ErrProductNotFound)

	err = s.products.DeleteByID(s.ctx, 999)
	s.ErrorIs(err, storeerrors.ErrProductNotFound)

	_, err = s.products.HasEnoughStock(s.ctx, SaleItem{ProductID: 999, Quantity: 1})
	s.ErrorIs(err, storeerrors.ErrProductNotFound)
}

func (s *storeSuite) TestProduct_DuplicateName() {
	// given
	s.createProduct("Martelo de Thor", 10)
	other := s.createProduct("Escudo do Capitão América", 5)

	// when
	_, errCreate := s.products.Create(s.ctx, "Martelo de Thor", 1)
	_, errUpdate := s.products.Update(s.ctx, Product{ID: other.ID, Name: "Martelo de Thor", Quantity: 5})

	// then
	s.ErrorIs(errCreate, storeerrors.ErrProductExists)
	s.ErrorIs(errUpdate, storeerrors.ErrProductExists)
}

func (s *storeSuite) TestProduct_UpdateAndDelete() {
	// given
	p := s.createProduct("Martelo de Thor", 10)

	// when
	updated, err := s.products.Update(s.ctx, Product{ID: p.ID, Name: "Martelo do Batman", Quantity: 3})

	// then
	s.Require().NoError(err)
	s.Equal(Product{ID: p.ID, Name: "Martelo do Batman", Quantity: 3}, *updated)
	found, err := s.products.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(*updated, *found)

	// unchanged values are still an update of an existing row
	_, err = s.products.Update(s.ctx, *updated)
	s.NoError(err)

	s.Require().NoError(s.products.DeleteByID(s.ctx, p.ID))
	_, err = s.products.FindByID(s.ctx, p.ID)
	s.ErrorIs(err, storeerrors.ErrProductNotFound)
}

func (s *storeSuite) TestProduct_HasEnoughStock() {
	p := s.createProduct("Martelo de Thor", 10)

	testCases := []struct {
		name     string
		quantity int32
		expected bool
	}{
		{name: "less than stock", quantity: 9, expected: true},
		{name: "equal to stock", quantity: 10, expected: true},
		{name: "more than stock", quantity: 11, expected: false},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ok, err := s.products.HasEnoughStock(s.ctx, SaleItem{ProductID: p.ID, Quantity: tc.quantity})
			s.Require().NoError(err)
			s.Equal(tc.expected, ok)
		})
	}
}

func (s *storeSuite) TestSale_CreateAndFind() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)

	// when
	first, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: suit.ID, Quantity: 2}, {ProductID: hammer.ID, Quantity: 1}})
	s.Require().NoError(err)
	second, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: hammer.ID, Quantity: 5}})
	s.Require().NoError(err)

	// then
	s.NotEqual(first.ID, second.ID)
	s.Equal([]SaleItem{{ProductID: suit.ID, Quantity: 2}, {ProductID: hammer.ID, Quantity: 1}}, first.ItemsSold)

	lines, err := s.sales.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Len(lines, 2)
	s.Equal(hammer.ID, lines[0].ProductID)
	s.Equal(int32(1), lines[0].Quantity)
	s.Equal(suit.ID, lines[1].ProductID)
	s.Equal(int32(2), lines[1].Quantity)
	s.False(lines[0].Date.IsZero())
	s.Equal(lines[0].Date, lines[1].Date)

	all, err := s.sales.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]int64{first.ID, first.ID, second.ID}, []int64{all[0].SaleID, all[1].SaleID, all[2].SaleID})
	s.Equal([]int64{hammer.ID, suit.ID, hammer.ID}, []int64{all[0].ProductID, all[1].ProductID, all[2].ProductID})
}

func (s *storeSuite) TestSale_FindAll_Empty() {
	all, err := s.sales.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *storeSuite) TestSale_NotFound() {
	_, err := s.sales.FindByID(s.ctx, 999)
	s.ErrorIs(err, storeerrors.ErrSaleNotFound)

	err = s.sales.DeleteByID(s.ctx, 999)
	s.ErrorIs(err, storeerrors.ErrSaleNotFound)
}

func (s *storeSuite) TestSale_FailedLineRemovesHeader() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)

	// when
	created, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: hammer.ID, Quantity: 1}, {ProductID: hammer.ID + 1000, Quantity: 1}})

	// then
	s.ErrorIs(err, storeerrors.ErrCreateSaleItem)
	s.Nil(created)
	all, err := s.sales.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *storeSuite) TestSale_UpdateOverwritesExistingLines() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)
	created, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: hammer.ID, Quantity: 1}})
	s.Require().NoError(err)

	// when
	updated, err := s.sales.Update(s.ctx, created.ID, []SaleItem{{ProductID: hammer.ID, Quantity: 7}, {ProductID: suit.ID, Quantity: 4}})

	// then
	s.Require().NoError(err)
	s.Equal(created.ID, updated.SaleID)
	lines, err := s.sales.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(lines, 1, "update never adds lines")
	s.Equal(int32(7), lines[0].Quantity)
}

func (s *storeSuite) TestSale_Delete() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	created, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: hammer.ID, Quantity: 1}})
	s.Require().NoError(err)

	// when
	err = s.sales.DeleteByID(s.ctx, created.ID)

	// then
	s.Require().NoError(err)
	_, err = s.sales.FindByID(s.ctx, created.ID)
	s.ErrorIs(err, storeerrors.ErrSaleNotFound)
	s.ErrorIs(s.sales.DeleteByID(s.ctx, created.ID), storeerrors.ErrSaleNotFound)
}

func (s *storeSuite) TestProductDelete_RemovesSaleLines() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)
	created, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: hammer.ID, Quantity: 1}, {ProductID: suit.ID, Quantity: 2}})
	s.Require().NoError(err)

	// when
	s.Require().NoError(s.products.DeleteByID(s.ctx, hammer.ID))

	// then
	lines, err := s.sales.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(lines, 1)
	s.Equal(suit.ID, lines[0].ProductID)
}
