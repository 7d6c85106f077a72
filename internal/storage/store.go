package storage

import (
	"errors"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
)

// ErrNotFound is returned by lookups that miss. Callers that need to
// distinguish a miss from a storage failure check errors.Is against it.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary. Both the gorm-backed store and the
// in-memory store used in tests implement it.
type Store interface {
	// Sessions
	GetSession(phone string) (*models.Session, error)
	CreateSession(session *models.Session) error
	SaveSession(session *models.Session) error
	DeleteIdleNewSessions(olderThan time.Time) (int64, error)
	CountSessionsByState() (map[string]int64, error)

	// Users
	GetUserByPhone(phone string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(userID string) (*models.User, error)
	CreateUser(user *models.User) error
	SaveUser(user *models.User) error

	// Products and carts
	CreateProduct(product *models.Product) error
	SearchProducts(query string, category string) ([]models.Product, error)
	GetProductByID(productID string) (*models.Product, error)
	GetCartItems(userID string) ([]models.CartItem, error)
	AddCartItem(item *models.CartItem) error
	UpdateCartItem(item *models.CartItem) error
	RemoveCartItem(userID, productID string) error
	ClearCart(userID string) error

	// Orders
	CreateOrder(order *models.Order) error
	SaveOrder(order *models.Order) error
	GetOrderByRef(orderRef string) (*models.Order, error)
	GetOrdersByUser(userID string) ([]models.Order, error)
	GetOrderByPaymentRef(paymentRef string) (*models.Order, error)

	// Doctors and appointments
	CreateDoctor(doctor *models.Doctor) error
	GetDoctorsBySpecialty(specialty string) ([]models.Doctor, error)
	GetDoctorByID(doctorID string) (*models.Doctor, error)
	CreateAppointment(appointment *models.Appointment) error
	GetAppointmentsByUser(userID string) ([]models.Appointment, error)

	// Lab tests and bookings
	CreateLabTest(test *models.LabTest) error
	GetLabTests() ([]models.LabTest, error)
	GetLabTestByID(testID string) (*models.LabTest, error)
	CreateLabBooking(booking *models.LabBooking) error
	GetLabBookingsByUser(userID string) ([]models.LabBooking, error)

	// OTPs
	CreateOTP(otp *models.OTP) error
	GetActiveOTP(phone string) (*models.OTP, error)
	SaveOTP(otp *models.OTP) error
	InvalidateOTPs(phone string) error
	DeleteExpiredOTPs(olderThan time.Time) (int64, error)

	// Prescriptions
	CreatePrescription(prescription *models.Prescription) error
	GetPrescriptionsByUser(userID string) ([]models.Prescription, error)

	// Support tickets
	GetOpenTicket(phone string) (*models.SupportTicket, error)
	CreateTicket(ticket *models.SupportTicket) error
	SaveTicket(ticket *models.SupportTicket) error

	// Admin exports
	GetAllUsers() ([]models.User, error)
	GetAllOrders() ([]models.Order, error)
	GetAllAppointments() ([]models.Appointment, error)
	GetAllLabBookings() ([]models.LabBooking, error)
	GetAllPrescriptions() ([]models.Prescription, error)
	GetAllTickets() ([]models.SupportTicket, error)
}
