package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/medlane-ng/medlane-backend/internal/models"
)

// DatabaseStore persists everything in Postgres through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a gorm-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Session operations

func (s *DatabaseStore) GetSession(phone string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("phone = ?", phone).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *DatabaseStore) CreateSession(session *models.Session) error {
	return s.db.Create(session).Error
}

func (s *DatabaseStore) SaveSession(session *models.Session) error {
	return s.db.Save(session).Error
}

func (s *DatabaseStore) DeleteIdleNewSessions(olderThan time.Time) (int64, error) {
	result := s.db.Where("state = ? AND last_activity < ?", models.SessionStateNew, olderThan).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

func (s *DatabaseStore) CountSessionsByState() (map[string]int64, error) {
	type row struct {
		State string
		Count int64
	}
	var rows []row
	err := s.db.Model(&models.Session{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Count
	}
	return counts, nil
}

// User operations

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *DatabaseStore) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *DatabaseStore) SaveUser(user *models.User) error {
	return s.db.Save(user).Error
}

// Product and cart operations

func (s *DatabaseStore) CreateProduct(product *models.Product) error {
	return s.db.Create(product).Error
}

func (s *DatabaseStore) SearchProducts(query string, category string) ([]models.Product, error) {
	var products []models.Product
	q := s.db.Where("in_stock = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if err := q.Order("name").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *DatabaseStore) GetProductByID(productID string) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where("product_id = ?", productID).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *DatabaseStore) GetCartItems(userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *DatabaseStore) AddCartItem(item *models.CartItem) error {
	return s.db.Create(item).Error
}

func (s *DatabaseStore) UpdateCartItem(item *models.CartItem) error {
	return s.db.Save(item).Error
}

func (s *DatabaseStore) RemoveCartItem(userID, productID string) error {
	result := s.db.Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) ClearCart(userID string) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// Order operations

func (s *DatabaseStore) CreateOrder(order *models.Order) error {
	return s.db.Create(order).Error
}

func (s *DatabaseStore) SaveOrder(order *models.Order) error {
	return s.db.Save(order).Error
}

func (s *DatabaseStore) GetOrderByRef(orderRef string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").Where("order_ref = ?", orderRef).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *DatabaseStore) GetOrdersByUser(userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *DatabaseStore) GetOrderByPaymentRef(paymentRef string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("payment_ref = ?", paymentRef).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// Doctor and appointment operations

func (s *DatabaseStore) CreateDoctor(doctor *models.Doctor) error {
	return s.db.Create(doctor).Error
}

func (s *DatabaseStore) GetDoctorsBySpecialty(specialty string) ([]models.Doctor, error) {
	var doctors []models.Doctor
	q := s.db.Where("available = ?", true)
	if specialty != "" {
		q = q.Where("specialty = ?", specialty)
	}
	if err := q.Order("name").Find(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

func (s *DatabaseStore) GetDoctorByID(doctorID string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := s.db.Where("doctor_id = ?", doctorID).First(&doctor).Error; err != nil {
		return nil, translate(err)
	}
	return &doctor, nil
}

func (s *DatabaseStore) CreateAppointment(appointment *models.Appointment) error {
	return s.db.Create(appointment).Error
}

func (s *DatabaseStore) GetAppointmentsByUser(userID string) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := s.db.Where("user_id = ?", userID).Order("scheduled_at DESC").Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// Lab test and booking operations

func (s *DatabaseStore) CreateLabTest(test *models.LabTest) error {
	return s.db.Create(test).Error
}

func (s *DatabaseStore) GetLabTests() ([]models.LabTest, error) {
	var tests []models.LabTest
	if err := s.db.Where("available = ?", true).Order("name").Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

func (s *DatabaseStore) GetLabTestByID(testID string) (*models.LabTest, error) {
	var test models.LabTest
	if err := s.db.Where("test_id = ?", testID).First(&test).Error; err != nil {
		return nil, translate(err)
	}
	return &test, nil
}

func (s *DatabaseStore) CreateLabBooking(booking *models.LabBooking) error {
	return s.db.Create(booking).Error
}

func (s *DatabaseStore) GetLabBookingsByUser(userID string) ([]models.LabBooking, error) {
	var bookings []models.LabBooking
	err := s.db.Where("user_id = ?", userID).Order("scheduled_at DESC").Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// OTP operations

func (s *DatabaseStore) CreateOTP(otp *models.OTP) error {
	return s.db.Create(otp).Error
}

func (s *DatabaseStore) GetActiveOTP(phone string) (*models.OTP, error) {
	var otp models.OTP
	err := s.db.Where("phone = ? AND is_used = ?", phone, false).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (s *DatabaseStore) SaveOTP(otp *models.OTP) error {
	return s.db.Save(otp).Error
}

func (s *DatabaseStore) InvalidateOTPs(phone string) error {
	return s.db.Model(&models.OTP{}).
		Where("phone = ? AND is_used = ?", phone, false).
		Update("is_used", true).Error
}

func (s *DatabaseStore) DeleteExpiredOTPs(olderThan time.Time) (int64, error) {
	result := s.db.Where("expires_at < ?", olderThan).Delete(&models.OTP{})
	return result.RowsAffected, result.Error
}

// Prescription operations

func (s *DatabaseStore) CreatePrescription(prescription *models.Prescription) error {
	return s.db.Create(prescription).Error
}

func (s *DatabaseStore) GetPrescriptionsByUser(userID string) ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&prescriptions).Error
	if err != nil {
		return nil, err
	}
	return prescriptions, nil
}

// Support ticket operations

func (s *DatabaseStore) GetOpenTicket(phone string) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := s.db.Where("phone = ? AND status = ?", phone, models.TicketStatusOpen).
		Order("created_at DESC").
		First(&ticket).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

func (s *DatabaseStore) CreateTicket(ticket *models.SupportTicket) error {
	return s.db.Create(ticket).Error
}

func (s *DatabaseStore) SaveTicket(ticket *models.SupportTicket) error {
	return s.db.Save(ticket).Error
}

// Admin export operations

func (s *DatabaseStore) GetAllUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *DatabaseStore) GetAllOrders() ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.Preload("Items").Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *DatabaseStore) GetAllAppointments() ([]models.Appointment, error) {
	var appointments []models.Appointment
	if err := s.db.Order("created_at DESC").Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *DatabaseStore) GetAllLabBookings() ([]models.LabBooking, error) {
	var bookings []models.LabBooking
	if err := s.db.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *DatabaseStore) GetAllPrescriptions() ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	if err := s.db.Order("created_at DESC").Find(&prescriptions).Error; err != nil {
		return nil, err
	}
	return prescriptions, nil
}

func (s *DatabaseStore) GetAllTickets() ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	if err := s.db.Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
