package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for local development
// (USE_MEMORY_STORE=true) and in tests.
type MemoryStore struct {
	sessions      map[string]*models.Session
	users         map[string]*models.User
	products      map[string]*models.Product
	cartItems     []*models.CartItem
	orders        map[string]*models.Order
	doctors       map[string]*models.Doctor
	appointments  []*models.Appointment
	labTests      map[string]*models.LabTest
	labBookings   []*models.LabBooking
	otps          []*models.OTP
	prescriptions []*models.Prescription
	tickets       []*models.SupportTicket

	// Mutexes for thread safety
	sessionMu      sync.RWMutex
	userMu         sync.RWMutex
	productMu      sync.RWMutex
	orderMu        sync.RWMutex
	doctorMu       sync.RWMutex
	labMu          sync.RWMutex
	otpMu          sync.RWMutex
	prescriptionMu sync.RWMutex
	ticketMu       sync.RWMutex

	idCounter uint
	idMu      sync.Mutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		users:    make(map[string]*models.User),
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		doctors:  make(map[string]*models.Doctor),
		labTests: make(map[string]*models.LabTest),
	}
}

func (m *MemoryStore) nextID() uint {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	m.idCounter++
	return m.idCounter
}

func (m *MemoryStore) stamp(created *time.Time, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// Session operations

func (m *MemoryStore) GetSession(phone string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[phone]
	if !exists {
		return nil, ErrNotFound
	}
	return session, nil
}

func (m *MemoryStore) CreateSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session.ID = m.nextID()
	m.stamp(&session.CreatedAt, &session.UpdatedAt)
	m.sessions[session.Phone] = session
	return nil
}

func (m *MemoryStore) SaveSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session.UpdatedAt = time.Now()
	m.sessions[session.Phone] = session
	return nil
}

func (m *MemoryStore) DeleteIdleNewSessions(olderThan time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var removed int64
	for phone, session := range m.sessions {
		if session.State == models.SessionStateNew && session.LastActivity.Before(olderThan) {
			delete(m.sessions, phone)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) CountSessionsByState() (map[string]int64, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	counts := make(map[string]int64)
	for _, session := range m.sessions {
		counts[session.State]++
	}
	return counts, nil
}

// User operations

func (m *MemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, user := range m.users {
		if user.Phone == phone {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByID(userID string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) CreateUser(user *models.User) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	user.ID = m.nextID()
	m.stamp(&user.CreatedAt, &user.UpdatedAt)
	m.users[user.UserID] = user
	return nil
}

func (m *MemoryStore) SaveUser(user *models.User) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	user.UpdatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

// Product and cart operations

func (m *MemoryStore) CreateProduct(product *models.Product) error {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	if err := product.BeforeCreate(nil); err != nil {
		return err
	}
	product.ID = m.nextID()
	m.stamp(&product.CreatedAt, &product.UpdatedAt)
	m.products[product.ProductID] = product
	return nil
}

func (m *MemoryStore) SearchProducts(query string, category string) ([]models.Product, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var results []models.Product
	for _, product := range m.products {
		if !product.InStock {
			continue
		}
		if category != "" && product.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(product.Name), query) &&
			!strings.Contains(strings.ToLower(product.Description), query) {
			continue
		}
		results = append(results, *product)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (m *MemoryStore) GetProductByID(productID string) (*models.Product, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	product, exists := m.products[productID]
	if !exists {
		return nil, ErrNotFound
	}
	return product, nil
}

func (m *MemoryStore) GetCartItems(userID string) ([]models.CartItem, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	var items []models.CartItem
	for _, item := range m.cartItems {
		if item.UserID == userID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (m *MemoryStore) AddCartItem(item *models.CartItem) error {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	item.ID = m.nextID()
	m.stamp(&item.CreatedAt, &item.UpdatedAt)
	m.cartItems = append(m.cartItems, item)
	return nil
}

func (m *MemoryStore) UpdateCartItem(item *models.CartItem) error {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	for i, existing := range m.cartItems {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			item.UpdatedAt = time.Now()
			m.cartItems[i] = item
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) RemoveCartItem(userID, productID string) error {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	for i, item := range m.cartItems {
		if item.UserID == userID && item.ProductID == productID {
			m.cartItems = append(m.cartItems[:i], m.cartItems[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearCart(userID string) error {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	var kept []*models.CartItem
	for _, item := range m.cartItems {
		if item.UserID != userID {
			kept = append(kept, item)
		}
	}
	m.cartItems = kept
	return nil
}

// Order operations

func (m *MemoryStore) CreateOrder(order *models.Order) error {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	if err := order.BeforeCreate(nil); err != nil {
		return err
	}
	order.ID = m.nextID()
	m.stamp(&order.CreatedAt, &order.UpdatedAt)
	m.orders[order.OrderRef] = order
	return nil
}

func (m *MemoryStore) SaveOrder(order *models.Order) error {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	order.UpdatedAt = time.Now()
	m.orders[order.OrderRef] = order
	return nil
}

func (m *MemoryStore) GetOrderByRef(orderRef string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	order, exists := m.orders[orderRef]
	if !exists {
		return nil, ErrNotFound
	}
	return order, nil
}

func (m *MemoryStore) GetOrdersByUser(userID string) ([]models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	var orders []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (m *MemoryStore) GetOrderByPaymentRef(paymentRef string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	for _, order := range m.orders {
		if order.PaymentRef == paymentRef {
			return order, nil
		}
	}
	return nil, ErrNotFound
}

// Doctor and appointment operations

func (m *MemoryStore) CreateDoctor(doctor *models.Doctor) error {
	m.doctorMu.Lock()
	defer m.doctorMu.Unlock()

	if err := doctor.BeforeCreate(nil); err != nil {
		return err
	}
	doctor.ID = m.nextID()
	m.stamp(&doctor.CreatedAt, &doctor.UpdatedAt)
	m.doctors[doctor.DoctorID] = doctor
	return nil
}

func (m *MemoryStore) GetDoctorsBySpecialty(specialty string) ([]models.Doctor, error) {
	m.doctorMu.RLock()
	defer m.doctorMu.RUnlock()

	var doctors []models.Doctor
	for _, doctor := range m.doctors {
		if !doctor.Available {
			continue
		}
		if specialty != "" && doctor.Specialty != specialty {
			continue
		}
		doctors = append(doctors, *doctor)
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

func (m *MemoryStore) GetDoctorByID(doctorID string) (*models.Doctor, error) {
	m.doctorMu.RLock()
	defer m.doctorMu.RUnlock()

	doctor, exists := m.doctors[doctorID]
	if !exists {
		return nil, ErrNotFound
	}
	return doctor, nil
}

func (m *MemoryStore) CreateAppointment(appointment *models.Appointment) error {
	m.doctorMu.Lock()
	defer m.doctorMu.Unlock()

	if err := appointment.BeforeCreate(nil); err != nil {
		return err
	}
	appointment.ID = m.nextID()
	m.stamp(&appointment.CreatedAt, &appointment.UpdatedAt)
	m.appointments = append(m.appointments, appointment)
	return nil
}

func (m *MemoryStore) GetAppointmentsByUser(userID string) ([]models.Appointment, error) {
	m.doctorMu.RLock()
	defer m.doctorMu.RUnlock()

	var appointments []models.Appointment
	for _, appointment := range m.appointments {
		if appointment.UserID == userID {
			appointments = append(appointments, *appointment)
		}
	}
	return appointments, nil
}

// Lab test and booking operations

func (m *MemoryStore) CreateLabTest(test *models.LabTest) error {
	m.labMu.Lock()
	defer m.labMu.Unlock()

	if err := test.BeforeCreate(nil); err != nil {
		return err
	}
	test.ID = m.nextID()
	m.stamp(&test.CreatedAt, &test.UpdatedAt)
	m.labTests[test.TestID] = test
	return nil
}

func (m *MemoryStore) GetLabTests() ([]models.LabTest, error) {
	m.labMu.RLock()
	defer m.labMu.RUnlock()

	var tests []models.LabTest
	for _, test := range m.labTests {
		if test.Available {
			tests = append(tests, *test)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
	return tests, nil
}

func (m *MemoryStore) GetLabTestByID(testID string) (*models.LabTest, error) {
	m.labMu.RLock()
	defer m.labMu.RUnlock()

	test, exists := m.labTests[testID]
	if !exists {
		return nil, ErrNotFound
	}
	return test, nil
}

func (m *MemoryStore) CreateLabBooking(booking *models.LabBooking) error {
	m.labMu.Lock()
	defer m.labMu.Unlock()

	if err := booking.BeforeCreate(nil); err != nil {
		return err
	}
	booking.ID = m.nextID()
	m.stamp(&booking.CreatedAt, &booking.UpdatedAt)
	m.labBookings = append(m.labBookings, booking)
	return nil
}

func (m *MemoryStore) GetLabBookingsByUser(userID string) ([]models.LabBooking, error) {
	m.labMu.RLock()
	defer m.labMu.RUnlock()

	var bookings []models.LabBooking
	for _, booking := range m.labBookings {
		if booking.UserID == userID {
			bookings = append(bookings, *booking)
		}
	}
	return bookings, nil
}

// OTP operations

func (m *MemoryStore) CreateOTP(otp *models.OTP) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp.ID = m.nextID()
	m.stamp(&otp.CreatedAt, &otp.UpdatedAt)
	m.otps = append(m.otps, otp)
	return nil
}

func (m *MemoryStore) GetActiveOTP(phone string) (*models.OTP, error) {
	m.otpMu.RLock()
	defer m.otpMu.RUnlock()

	for i := len(m.otps) - 1; i >= 0; i-- {
		otp := m.otps[i]
		if otp.Phone == phone && !otp.IsUsed {
			return otp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SaveOTP(otp *models.OTP) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp.UpdatedAt = time.Now()
	for i, existing := range m.otps {
		if existing.ID == otp.ID {
			m.otps[i] = otp
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) InvalidateOTPs(phone string) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	for _, otp := range m.otps {
		if otp.Phone == phone && !otp.IsUsed {
			otp.IsUsed = true
			otp.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryStore) DeleteExpiredOTPs(olderThan time.Time) (int64, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var kept []*models.OTP
	var removed int64
	for _, otp := range m.otps {
		if otp.ExpiresAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, otp)
	}
	m.otps = kept
	return removed, nil
}

// Prescription operations

func (m *MemoryStore) CreatePrescription(prescription *models.Prescription) error {
	m.prescriptionMu.Lock()
	defer m.prescriptionMu.Unlock()

	if err := prescription.BeforeCreate(nil); err != nil {
		return err
	}
	prescription.ID = m.nextID()
	m.stamp(&prescription.CreatedAt, &prescription.UpdatedAt)
	m.prescriptions = append(m.prescriptions, prescription)
	return nil
}

func (m *MemoryStore) GetPrescriptionsByUser(userID string) ([]models.Prescription, error) {
	m.prescriptionMu.RLock()
	defer m.prescriptionMu.RUnlock()

	var prescriptions []models.Prescription
	for _, prescription := range m.prescriptions {
		if prescription.UserID == userID {
			prescriptions = append(prescriptions, *prescription)
		}
	}
	return prescriptions, nil
}

// Support ticket operations

func (m *MemoryStore) GetOpenTicket(phone string) (*models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	for i := len(m.tickets) - 1; i >= 0; i-- {
		ticket := m.tickets[i]
		if ticket.Phone == phone && ticket.Status == models.TicketStatusOpen {
			return ticket, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateTicket(ticket *models.SupportTicket) error {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	if err := ticket.BeforeCreate(nil); err != nil {
		return err
	}
	ticket.ID = m.nextID()
	m.stamp(&ticket.CreatedAt, &ticket.UpdatedAt)
	m.tickets = append(m.tickets, ticket)
	return nil
}

func (m *MemoryStore) SaveTicket(ticket *models.SupportTicket) error {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	ticket.UpdatedAt = time.Now()
	for i, existing := range m.tickets {
		if existing.ID == ticket.ID {
			m.tickets[i] = ticket
			return nil
		}
	}
	return ErrNotFound
}

// Admin export operations

func (m *MemoryStore) GetAllUsers() ([]models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	var users []models.User
	for _, user := range m.users {
		users = append(users, *user)
	}
	return users, nil
}

func (m *MemoryStore) GetAllOrders() ([]models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	var orders []models.Order
	for _, order := range m.orders {
		orders = append(orders, *order)
	}
	return orders, nil
}

func (m *MemoryStore) GetAllAppointments() ([]models.Appointment, error) {
	m.doctorMu.RLock()
	defer m.doctorMu.RUnlock()

	var appointments []models.Appointment
	for _, appointment := range m.appointments {
		appointments = append(appointments, *appointment)
	}
	return appointments, nil
}

func (m *MemoryStore) GetAllLabBookings() ([]models.LabBooking, error) {
	m.labMu.RLock()
	defer m.labMu.RUnlock()

	var bookings []models.LabBooking
	for _, booking := range m.labBookings {
		bookings = append(bookings, *booking)
	}
	return bookings, nil
}

func (m *MemoryStore) GetAllPrescriptions() ([]models.Prescription, error) {
	m.prescriptionMu.RLock()
	defer m.prescriptionMu.RUnlock()

	var prescriptions []models.Prescription
	for _, prescription := range m.prescriptions {
		prescriptions = append(prescriptions, *prescription)
	}
	return prescriptions, nil
}

func (m *MemoryStore) GetAllTickets() ([]models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	var tickets []models.SupportTicket
	for _, ticket := range m.tickets {
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}
